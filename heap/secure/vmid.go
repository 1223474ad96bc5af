// Package secure models secure memory domains: the closed set of virtual
// machine ids (VMIDs) that can own memory, and the ownership-transfer
// authority that moves memory between the host and those VMs.
package secure

import "fmt"

// VMID identifies a secure domain. None (0) means host-owned memory.
type VMID int

// Known VMIDs. Only the content-protection ids are valid secure-heap targets.
const (
	None            VMID = 0
	HLOS            VMID = 3
	CPTouch         VMID = 8
	CPBitstream     VMID = 9
	CPPixel         VMID = 10
	CPNonPixel      VMID = 11
	CPCamera        VMID = 13
	HLOSFree        VMID = 14
	MSSMSA          VMID = 15
	MSSNonMSA       VMID = 16
	CPSecDisplay    VMID = 17
	CPApp           VMID = 18
	WLAN            VMID = 24
	WLANCE          VMID = 25
	CPSPSSSP        VMID = 26
	CPCameraPreview VMID = 29
	CPSPSSSPShared  VMID = 30
	CPSPSSHLOSShare VMID = 31
	CPCDSP          VMID = 42

	// Last bounds the id space; valid ids are strictly below it.
	Last VMID = 43
)

var names = map[VMID]string{
	None:            "none",
	HLOS:            "hlos",
	CPTouch:         "cp-touch",
	CPBitstream:     "cp-bitstream",
	CPPixel:         "cp-pixel",
	CPNonPixel:      "cp-non-pixel",
	CPCamera:        "cp-camera",
	HLOSFree:        "hlos-free",
	MSSMSA:          "mss-msa",
	MSSNonMSA:       "mss-nonmsa",
	CPSecDisplay:    "cp-sec-display",
	CPApp:           "cp-app",
	WLAN:            "wlan",
	WLANCE:          "wlan-ce",
	CPSPSSSP:        "cp-spss-sp",
	CPCameraPreview: "cp-camera-preview",
	CPSPSSSPShared:  "cp-spss-sp-shared",
	CPSPSSHLOSShare: "cp-spss-hlos-shared",
	CPCDSP:          "cp-cdsp",
}

// Valid reports whether v is a secure domain the heap may allocate for.
func Valid(v VMID) bool {
	switch v {
	case CPTouch, CPBitstream, CPPixel, CPNonPixel, CPCamera, CPSecDisplay,
		CPApp, CPSPSSSP, CPCameraPreview, CPSPSSSPShared, CPSPSSHLOSShare, CPCDSP:
		return true
	}
	return false
}

// All returns every valid secure VMID in ascending order.
func All() []VMID {
	var out []VMID
	for v := None; v < Last; v++ {
		if Valid(v) {
			out = append(out, v)
		}
	}
	return out
}

// Parse resolves a VMID from its name or decimal value.
func Parse(s string) (VMID, error) {
	for v, n := range names {
		if n == s {
			return v, nil
		}
	}
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err == nil && VMID(n) >= None && VMID(n) < Last {
		return VMID(n), nil
	}
	return None, fmt.Errorf("secure: unknown vmid %q", s)
}

func (v VMID) String() string {
	if n, ok := names[v]; ok {
		return n
	}
	return fmt.Sprintf("vmid(%d)", int(v))
}

package version

import "testing"

func TestInfo(t *testing.T) {
	t.Parallel()

	bi := Info()
	if bi.Service != "pulseboard" || bi.Version == "" {
		t.Fatalf("Info = %+v", bi)
	}
	sc := ShortCommit()
	if sc != "unknown" && len(sc) != 7 {
		t.Fatalf("ShortCommit = %q", sc)
	}
}

package banner

import (
	"strings"
	"testing"
)

func TestBannerIncludesVersion(t *testing.T) {
	if got := Banner("v1.2.3"); !strings.Contains(got, "v1.2.3") {
		t.Errorf("Banner = %q, missing version", got)
	}
}

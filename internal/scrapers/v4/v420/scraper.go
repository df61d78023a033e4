// Package v420 is the scraper plugin for upstream release 4.2.0, the
// production version most tenants run.
package v420

import (
	"github.com/IzacPS/conecta-sei-backend/internal/interfaces"
	"github.com/IzacPS/conecta-sei-backend/internal/scrapers"
	v4 "github.com/IzacPS/conecta-sei-backend/internal/scrapers/v4"
)

// Version is the exact upstream release this plugin serves
const Version = "4.2.0"

// Scraper embeds the v4 family defaults. 4.2.0 deviates from the family only
// in the download gesture: the document anchor opens an inline viewer on a
// plain click, so the file download requires the ALT modifier.
type Scraper struct {
	*v4.Base
}

// Compile-time assertion
var _ interfaces.Scraper = (*Scraper)(nil)

// New builds the 4.2.0 plugin
func New() *Scraper {
	base := v4.NewBase(Version)
	base.SetAltDownload(true)
	return &Scraper{Base: base}
}

func init() {
	scrapers.Default().Register(New())
}

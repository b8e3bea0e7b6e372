// Package sanitiser cleans attachment and bullet point body HTML before it
// reaches the content store. The pipeline works on regex scans per tag
// rather than a full HTML parse, so it tolerates the malformed markup ESDH
// exports tend to contain.
package sanitiser

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/agendadk/agendasync/internal/core/domain"
	"github.com/agendadk/agendasync/internal/core/ports/driven"
	"github.com/agendadk/agendasync/internal/logger"
)

// Ensure Sanitiser implements the interface.
var _ driven.HTMLSanitiser = (*Sanitiser)(nil)

// Pre-compiled regular expressions shared by all instances.
var (
	styleAttr = regexp.MustCompile(`(?is)\sstyle="(.*?)"`)
	nbspRuns  = regexp.MustCompile(`(?:\x{00A0}|&nbsp;){2,}`)
	emptyPars = regexp.MustCompile(`(?i)(<p( )*?>((<span>)*?)(|&nbsp;)((</span>)*?)</p>\s*)+`)
	imgSrc    = regexp.MustCompile(`src="([^"]+)"`)
	emptyImg  = regexp.MustCompile(`<img([^>]+)src=""([^>]*)>`)
)

// Sanitiser applies the body cleaning pipeline in fixed order: tag style
// stripping, nbsp collapsing, empty paragraph collapsing, br run capping
// and image path rewriting.
type Sanitiser struct {
	tagOpens  []*regexp.Regexp
	nbsp      bool
	emptyPara bool
	brRun     *regexp.Regexp
	policy    *bluemonday.Policy
	files     driven.FileStore
}

// New builds a sanitiser from the import settings.
func New(settings domain.ImportSettings, files driven.FileStore) *Sanitiser {
	s := &Sanitiser{
		nbsp:      settings.ReplaceMultipleNbsp,
		emptyPara: settings.ReplaceEmptyParagraphs,
		files:     files,
	}

	for _, tag := range settings.ClearHTMLTagsList {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		s.tagOpens = append(s.tagOpens, regexp.MustCompile(fmt.Sprintf(`(?is)<%s(.*?)>`, regexp.QuoteMeta(tag))))
	}

	// Runs longer than the limit are removed entirely; counts <br>, <br/>
	// and <br />, case-insensitive.
	maxBr := settings.MaxSequentialBr
	if maxBr < 1 {
		maxBr = 1
	}
	s.brRun = regexp.MustCompile(fmt.Sprintf(`(?i)(<br>|<br/>|<br />){%d,}`, maxBr+1))

	if settings.SanitizeUnsafeMarkup {
		s.policy = bluemonday.UGCPolicy()
	}

	return s
}

// Clean runs the cleaning pipeline over body HTML.
func (s *Sanitiser) Clean(html string) string {
	html = s.clearTagStyles(html)

	if s.nbsp {
		html = nbspRuns.ReplaceAllString(html, "&nbsp;")
	}

	if s.emptyPara {
		html = emptyPars.ReplaceAllString(html, "<br/>")
	}

	html = s.brRun.ReplaceAllString(html, "")

	if s.policy != nil {
		html = s.policy.Sanitize(html)
	}

	return html
}

// clearTagStyles removes the style attribute from every occurrence of each
// configured tag. Attribute order and self-closing forms are irrelevant:
// the scan matches the whole opening tag and rewrites it.
func (s *Sanitiser) clearTagStyles(html string) string {
	for _, open := range s.tagOpens {
		for _, match := range open.FindAllString(html, -1) {
			filtered := styleAttr.ReplaceAllString(match, "")
			if filtered != match {
				html = strings.ReplaceAll(html, match, filtered)
			}
		}
	}
	return html
}

// FixImagePaths rewrites every src attribute against the manifest
// directory. Files in private storage are mirrored into the public tree;
// files missing on disk have their src stripped, and emptied img tags are
// dropped.
func (s *Sanitiser) FixImagePaths(ctx context.Context, html, directoryPath string) string {
	for _, match := range imgSrc.FindAllStringSubmatch(html, -1) {
		path := match[1]
		resolved := filepath.Join(directoryPath, path)

		if s.files.IsPrivate(resolved) {
			mirrored, err := s.files.MirrorToPublic(ctx, resolved)
			if err != nil {
				logger.Warn("Image %s cannot be mirrored to public storage: %v", resolved, err)
				resolved = ""
			} else {
				resolved = mirrored
			}
		}

		if resolved == "" || !s.files.Exists(resolved) {
			html = strings.ReplaceAll(html, path, "")
		} else {
			html = strings.ReplaceAll(html, path, s.files.PublicURL(resolved))
		}
	}

	return emptyImg.ReplaceAllString(html, "")
}

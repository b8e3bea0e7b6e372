// Package xmldir reads meeting manifests from an XML directory tree.
//
// The reader walks the source root recursively, follows directory
// symlinks, picks up files matching the configured filename pattern and
// extracts one raw record per item node. Field values keep the document
// structure: leaf elements become strings, elements with children become
// nested maps, repeated sibling names become slices and attributes land
// under "@attributes".
package xmldir

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/agendadk/agendasync/internal/core/domain"
	"github.com/agendadk/agendasync/internal/core/ports/driven"
)

// Ensure the interfaces are implemented.
var (
	_ driven.RecordReader  = (*Reader)(nil)
	_ driven.ReaderFactory = (*Factory)(nil)
)

// Factory builds directory readers for configured sources.
type Factory struct{}

// NewFactory creates a reader factory.
func NewFactory() *Factory {
	return &Factory{}
}

// Create builds a reader for one source from the provider's extraction
// spec.
func (f *Factory) Create(source domain.Source, spec driven.ReaderSpec, bannedChars []string) (driven.RecordReader, error) {
	return New(Config{
		Root:           source.Path,
		Pattern:        source.Pattern,
		ItemSelector:   spec.ItemSelector,
		FieldSelectors: spec.FieldSelectors,
		BannedChars:    bannedChars,
	})
}

// Config describes where and how to read manifests.
type Config struct {
	// Root is the directory to walk.
	Root string

	// Pattern is a regular expression matched against manifest file
	// names. Empty matches every file.
	Pattern string

	// ItemSelector is the XPath expression selecting item nodes within a
	// manifest.
	ItemSelector string

	// FieldSelectors maps field names to XPath expressions evaluated
	// relative to each item node.
	FieldSelectors map[string]string

	// BannedChars are byte sequences stripped from manifest content
	// before parsing. ESDH exports occasionally contain control
	// characters that break the XML parser.
	BannedChars []string
}

// Reader streams raw records from an XML directory tree.
type Reader struct {
	cfg     Config
	pattern *regexp.Regexp
}

// New creates a reader. The filename pattern is compiled up front so a
// bad configuration fails before the walk starts.
func New(cfg Config) (*Reader, error) {
	r := &Reader{cfg: cfg}

	if cfg.Pattern != "" {
		pattern, err := regexp.Compile(cfg.Pattern)
		if err != nil {
			return nil, fmt.Errorf("compiling filename pattern: %w", err)
		}
		r.pattern = pattern
	}

	return r, nil
}

// Read walks the root and delivers one record per manifest item. A
// manifest that fails to parse produces a *domain.RowError and the walk
// continues; filesystem errors abort the run.
func (r *Reader) Read(ctx context.Context) (<-chan domain.RawRecord, <-chan error) {
	records := make(chan domain.RawRecord)
	errs := make(chan error, 1)

	go func() {
		defer close(records)
		defer close(errs)

		manifests, err := r.collectManifests()
		if err != nil {
			errs <- fmt.Errorf("walking %s: %w", r.cfg.Root, err)
			return
		}

		for _, manifest := range manifests {
			select {
			case <-ctx.Done():
				return
			default:
			}

			rows, err := r.readManifest(manifest)
			if err != nil {
				select {
				case errs <- &domain.RowError{SourceURL: manifest, Err: err}:
				case <-ctx.Done():
					return
				}
				continue
			}

			for _, row := range rows {
				select {
				case records <- row:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return records, errs
}

// collectManifests walks the root recursively, following directory
// symlinks. Dot-entries are skipped and already-visited directories are
// not descended into again, so symlink cycles terminate.
func (r *Reader) collectManifests() ([]string, error) {
	var manifests []string
	visited := make(map[string]bool)

	var walk func(dir string) error
	walk = func(dir string) error {
		real, err := filepath.EvalSymlinks(dir)
		if err != nil {
			return err
		}
		if visited[real] {
			return nil
		}
		visited[real] = true

		entries, err := os.ReadDir(dir)
		if err != nil {
			return err
		}

		for _, entry := range entries {
			if strings.HasPrefix(entry.Name(), ".") {
				continue
			}

			full := filepath.Join(dir, entry.Name())
			info, err := os.Stat(full)
			if err != nil {
				// Dangling symlink, nothing to read.
				continue
			}

			if info.IsDir() {
				if err := walk(full); err != nil {
					return err
				}
				continue
			}

			if r.pattern == nil || r.pattern.MatchString(entry.Name()) {
				manifests = append(manifests, full)
			}
		}
		return nil
	}

	if err := walk(r.cfg.Root); err != nil {
		return nil, err
	}

	sort.Strings(manifests)
	return manifests, nil
}

// readManifest parses one manifest file into raw records.
func (r *Reader) readManifest(path string) ([]domain.RawRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	content := string(data)
	for _, banned := range r.cfg.BannedChars {
		content = strings.ReplaceAll(content, banned, "")
	}

	doc, err := xmlquery.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}

	items, err := xmlquery.QueryAll(doc, r.cfg.ItemSelector)
	if err != nil {
		return nil, fmt.Errorf("selecting items: %w", err)
	}

	var rows []domain.RawRecord
	for _, item := range items {
		fields, err := r.extractFields(item)
		if err != nil {
			return nil, err
		}
		rows = append(rows, domain.RawRecord{
			SourceURL:     path,
			DirectoryPath: filepath.Dir(path),
			Fields:        fields,
		})
	}

	return rows, nil
}

// extractFields evaluates every field selector against an item node.
// Selectors that match nothing leave the field absent; a single match
// collapses to its value, multiple matches become a slice.
func (r *Reader) extractFields(item *xmlquery.Node) (map[string]any, error) {
	fields := make(map[string]any, len(r.cfg.FieldSelectors))

	for name, selector := range r.cfg.FieldSelectors {
		nodes, err := xmlquery.QueryAll(item, selector)
		if err != nil {
			return nil, fmt.Errorf("selecting field %s: %w", name, err)
		}

		switch len(nodes) {
		case 0:
		case 1:
			fields[name] = nodeValue(nodes[0])
		default:
			values := make([]any, 0, len(nodes))
			for _, node := range nodes {
				values = append(values, nodeValue(node))
			}
			fields[name] = values
		}
	}

	return fields, nil
}

// nodeValue converts an element node to its structural value. A leaf
// without attributes is just its text; anything else becomes a nested
// map with child elements keyed by name and repeated names collected
// into slices.
func nodeValue(node *xmlquery.Node) any {
	attrs := attrMap(node)

	children := childElements(node)
	if len(children) == 0 {
		text := strings.TrimSpace(node.InnerText())
		if len(attrs) == 0 {
			return text
		}
		nested := domain.Nested{"@attributes": attrs}
		if text != "" {
			nested["#text"] = text
		}
		return nested
	}

	nested := domain.Nested{}
	counts := make(map[string]int, len(children))
	for _, child := range children {
		counts[child.Data]++
	}

	for _, child := range children {
		name := child.Data
		value := nodeValue(child)

		if counts[name] == 1 {
			nested[name] = value
			continue
		}

		list, _ := nested[name].([]any)
		nested[name] = append(list, value)
	}

	if len(attrs) > 0 {
		nested["@attributes"] = attrs
	}
	return nested
}

func childElements(node *xmlquery.Node) []*xmlquery.Node {
	var children []*xmlquery.Node
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode {
			children = append(children, child)
		}
	}
	return children
}

func attrMap(node *xmlquery.Node) map[string]any {
	if len(node.Attr) == 0 {
		return nil
	}
	attrs := make(map[string]any, len(node.Attr))
	for _, attr := range node.Attr {
		attrs[attr.Name.Local] = attr.Value
	}
	return attrs
}

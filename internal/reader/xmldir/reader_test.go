package xmldir

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agendadk/agendasync/internal/core/domain"
)

func writeManifest(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func collect(t *testing.T, r *Reader) ([]domain.RawRecord, []error) {
	t.Helper()

	records, errs := r.Read(context.Background())

	var rows []domain.RawRecord
	var failures []error
	for records != nil || errs != nil {
		select {
		case row, ok := <-records:
			if !ok {
				records = nil
				continue
			}
			rows = append(rows, row)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			failures = append(failures, err)
		}
	}
	return rows, failures
}

func TestNew(t *testing.T) {
	t.Run("rejects an invalid filename pattern", func(t *testing.T) {
		_, err := New(Config{Pattern: `([`})
		require.Error(t, err)
	})

	t.Run("accepts an empty pattern", func(t *testing.T) {
		r, err := New(Config{Root: "/tmp"})
		require.NoError(t, err)
		require.NotNil(t, r)
	})
}

func TestReader_Read(t *testing.T) {
	newReader := func(t *testing.T, cfg Config) *Reader {
		t.Helper()
		r, err := New(cfg)
		require.NoError(t, err)
		return r
	}

	t.Run("reads only files matching the pattern", func(t *testing.T) {
		root := t.TempDir()
		writeManifest(t, root, "agenda_1.xml", `<Root><Item><ID>1</ID></Item></Root>`)
		writeManifest(t, root, "notes.txt", `not a manifest`)

		r := newReader(t, Config{
			Root:           root,
			Pattern:        `\.xml$`,
			ItemSelector:   "//Item",
			FieldSelectors: map[string]string{"id": "ID"},
		})

		rows, failures := collect(t, r)

		require.Empty(t, failures)
		require.Len(t, rows, 1)
		assert.Equal(t, "1", rows[0].String("id"))
	})

	t.Run("attaches source and directory paths to each row", func(t *testing.T) {
		root := t.TempDir()
		path := writeManifest(t, root, filepath.Join("2024", "agenda.xml"),
			`<Root><Item><ID>7</ID></Item></Root>`)

		r := newReader(t, Config{
			Root:           root,
			ItemSelector:   "//Item",
			FieldSelectors: map[string]string{"id": "ID"},
		})

		rows, failures := collect(t, r)

		require.Empty(t, failures)
		require.Len(t, rows, 1)
		assert.Equal(t, path, rows[0].SourceURL)
		assert.Equal(t, filepath.Dir(path), rows[0].DirectoryPath)
	})

	t.Run("collapses single elements and collects repeated ones", func(t *testing.T) {
		root := t.TempDir()
		writeManifest(t, root, "agenda.xml", `
			<Root>
				<Item>
					<ID>42</ID>
					<Punkter>
						<Punkt><Titel>First</Titel></Punkt>
						<Punkt><Titel>Second</Titel></Punkt>
					</Punkter>
				</Item>
			</Root>`)

		r := newReader(t, Config{
			Root:         root,
			ItemSelector: "//Item",
			FieldSelectors: map[string]string{
				"id":     "ID",
				"points": "Punkter/Punkt",
			},
		})

		rows, failures := collect(t, r)

		require.Empty(t, failures)
		require.Len(t, rows, 1)
		assert.Equal(t, "42", rows[0].String("id"))

		points := rows[0].Records("points")
		require.Len(t, points, 2)
		assert.Equal(t, "First", points[0].String("Titel"))
		assert.Equal(t, "Second", points[1].String("Titel"))
	})

	t.Run("keeps attributes under the attribute key", func(t *testing.T) {
		root := t.TempDir()
		writeManifest(t, root, "agenda.xml",
			`<Root><Item><Udvalg id="ABC-1"><Navn>Byråd</Navn></Udvalg></Item></Root>`)

		r := newReader(t, Config{
			Root:           root,
			ItemSelector:   "//Item",
			FieldSelectors: map[string]string{"committee": "Udvalg"},
		})

		rows, failures := collect(t, r)

		require.Empty(t, failures)
		require.Len(t, rows, 1)

		committee := rows[0].Record("committee")
		require.NotNil(t, committee)
		assert.Equal(t, "Byråd", committee.String("Navn"))
		assert.Equal(t, "ABC-1", committee.Attr("id"))
	})

	t.Run("reports malformed manifests as row errors and continues", func(t *testing.T) {
		root := t.TempDir()
		bad := writeManifest(t, root, "a_broken.xml", `<Root><Item><ID>1</ID>`)
		writeManifest(t, root, "b_good.xml", `<Root><Item><ID>2</ID></Item></Root>`)

		r := newReader(t, Config{
			Root:           root,
			ItemSelector:   "//Item",
			FieldSelectors: map[string]string{"id": "ID"},
		})

		rows, failures := collect(t, r)

		require.Len(t, failures, 1)
		rowErr, ok := domain.IsRowError(failures[0])
		require.True(t, ok)
		assert.Equal(t, bad, rowErr.SourceURL)

		require.Len(t, rows, 1)
		assert.Equal(t, "2", rows[0].String("id"))
	})

	t.Run("strips banned characters before parsing", func(t *testing.T) {
		root := t.TempDir()
		writeManifest(t, root, "agenda.xml",
			"<Root><Item><ID>9\x02</ID></Item></Root>")

		r := newReader(t, Config{
			Root:           root,
			ItemSelector:   "//Item",
			FieldSelectors: map[string]string{"id": "ID"},
			BannedChars:    []string{"\x02"},
		})

		rows, failures := collect(t, r)

		require.Empty(t, failures)
		require.Len(t, rows, 1)
		assert.Equal(t, "9", rows[0].String("id"))
	})

	t.Run("skips dot entries", func(t *testing.T) {
		root := t.TempDir()
		writeManifest(t, root, filepath.Join(".archive", "old.xml"),
			`<Root><Item><ID>1</ID></Item></Root>`)
		writeManifest(t, root, ".hidden.xml",
			`<Root><Item><ID>2</ID></Item></Root>`)
		writeManifest(t, root, "visible.xml",
			`<Root><Item><ID>3</ID></Item></Root>`)

		r := newReader(t, Config{
			Root:           root,
			ItemSelector:   "//Item",
			FieldSelectors: map[string]string{"id": "ID"},
		})

		rows, failures := collect(t, r)

		require.Empty(t, failures)
		require.Len(t, rows, 1)
		assert.Equal(t, "3", rows[0].String("id"))
	})

	t.Run("follows directory symlinks without looping", func(t *testing.T) {
		root := t.TempDir()
		outside := t.TempDir()
		writeManifest(t, outside, "linked.xml",
			`<Root><Item><ID>5</ID></Item></Root>`)

		if err := os.Symlink(outside, filepath.Join(root, "mounted")); err != nil {
			t.Skipf("symlinks unavailable: %v", err)
		}
		// Cycle back into the tree being walked.
		require.NoError(t, os.Symlink(root, filepath.Join(outside, "loop")))

		r := newReader(t, Config{
			Root:           root,
			ItemSelector:   "//Item",
			FieldSelectors: map[string]string{"id": "ID"},
		})

		rows, failures := collect(t, r)

		require.Empty(t, failures)
		require.Len(t, rows, 1)
		assert.Equal(t, "5", rows[0].String("id"))
	})

	t.Run("cancellation stops the stream", func(t *testing.T) {
		root := t.TempDir()
		writeManifest(t, root, "agenda.xml", `<Root><Item><ID>1</ID></Item></Root>`)

		r := newReader(t, Config{
			Root:           root,
			ItemSelector:   "//Item",
			FieldSelectors: map[string]string{"id": "ID"},
		})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		records, errs := r.Read(ctx)
		for range records {
		}
		for range errs {
		}
	})
}

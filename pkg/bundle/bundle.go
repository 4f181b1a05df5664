// Package bundle stores a compiled shader program as a single zip archive:
// a JSON manifest, the gob-encoded program, its IR listing and the source
// tree it was built from.
package bundle

import (
	"archive/zip"
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"fixshade/pkg/asm"
	"fixshade/pkg/ir"
	"fixshade/pkg/vfs"
)

// FormatVersion is written to every manifest; FromBytes rejects newer ones.
const FormatVersion = 1

const (
	manifestEntry = "manifest.json"
	programEntry  = "program.gob"
	listingEntry  = "program.ir"
	sourcePrefix  = "src/"
)

// Bundle is a program together with what is needed to run or rebuild it.
type Bundle struct {
	Entry   string
	Program *ir.Program
	Sources *vfs.Tree // nil when built from a listing
	Created time.Time
}

// funcDescriptor summarizes one function's calling shape.
type funcDescriptor struct {
	Name    string `json:"name"`
	Params  int    `json:"params"`
	Results int    `json:"results"`
}

type manifest struct {
	Version int              `json:"version"`
	Entry   string           `json:"entry"`
	Created time.Time        `json:"created"`
	Funcs   []funcDescriptor `json:"funcs"`
	Sources []string         `json:"sources,omitempty"`
}

// Signature returns the parameter and result word counts of fn.
func (b *Bundle) Signature(fn string) (params, results int, err error) {
	f, ok := b.Program.Lookup(fn)
	if !ok {
		return 0, 0, fmt.Errorf("bundle has no function %q", fn)
	}
	return f.NumParams, f.NumResults, nil
}

// ToBytes serialises the bundle into an in-memory zip archive.
func (b *Bundle) ToBytes() ([]byte, error) {
	if b.Program == nil {
		return nil, fmt.Errorf("bundle has no program")
	}
	if b.Entry != "" {
		if _, ok := b.Program.Lookup(b.Entry); !ok {
			return nil, fmt.Errorf("entry point %q not in program", b.Entry)
		}
	}

	created := b.Created
	if created.IsZero() {
		created = time.Now()
	}

	m := manifest{
		Version: FormatVersion,
		Entry:   b.Entry,
		Created: created.UTC(),
	}
	for _, f := range b.Program.Funcs {
		m.Funcs = append(m.Funcs, funcDescriptor{Name: f.Name, Params: f.NumParams, Results: f.NumResults})
	}
	if b.Sources != nil {
		m.Sources = b.Sources.List()
	}

	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)

	jsonData, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	if err := writeZipEntry(zw, manifestEntry, jsonData, created); err != nil {
		return nil, err
	}

	var prog bytes.Buffer
	if err := gob.NewEncoder(&prog).Encode(b.Program); err != nil {
		return nil, fmt.Errorf("encode program: %w", err)
	}
	if err := writeZipEntry(zw, programEntry, prog.Bytes(), created); err != nil {
		return nil, err
	}
	if err := writeZipEntry(zw, listingEntry, []byte(b.Program.String()), created); err != nil {
		return nil, err
	}

	for _, name := range m.Sources {
		data, err := b.Sources.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("source %q: %w", name, err)
		}
		mod, _ := b.Sources.ModTime(name)
		if err := writeZipEntry(zw, sourcePrefix+name, data, mod); err != nil {
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close zip: %w", err)
	}
	return buf.Bytes(), nil
}

// FromBytes reads an archive produced by ToBytes. A bundle without
// program.gob is rebuilt from its listing.
func FromBytes(data []byte) (*Bundle, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}

	fileMap := make(map[string]*zip.File, len(r.File))
	for _, f := range r.File {
		fileMap[f.Name] = f
	}

	jsonData, err := readZipEntry(fileMap, manifestEntry)
	if err != nil {
		return nil, err
	}
	var m manifest
	if err := json.Unmarshal(jsonData, &m); err != nil {
		return nil, fmt.Errorf("unmarshal manifest: %w", err)
	}
	if m.Version < 1 || m.Version > FormatVersion {
		return nil, fmt.Errorf("unsupported bundle version %d", m.Version)
	}

	b := &Bundle{Entry: m.Entry, Created: m.Created}

	if raw, err := readZipEntry(fileMap, programEntry); err == nil {
		b.Program = new(ir.Program)
		if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(b.Program); err != nil {
			return nil, fmt.Errorf("decode program: %w", err)
		}
	} else {
		listing, lerr := readZipEntry(fileMap, listingEntry)
		if lerr != nil {
			return nil, fmt.Errorf("bundle has neither %s nor %s", programEntry, listingEntry)
		}
		if b.Program, err = asm.Assemble(string(listing)); err != nil {
			return nil, fmt.Errorf("assemble %s: %w", listingEntry, err)
		}
	}

	for _, fd := range m.Funcs {
		f, ok := b.Program.Lookup(fd.Name)
		if !ok {
			return nil, fmt.Errorf("manifest names missing function %q", fd.Name)
		}
		if f.NumParams != fd.Params || f.NumResults != fd.Results {
			return nil, fmt.Errorf("function %q: manifest says %d->%d words, program has %d->%d",
				fd.Name, fd.Params, fd.Results, f.NumParams, f.NumResults)
		}
	}
	if b.Entry != "" {
		if _, ok := b.Program.Lookup(b.Entry); !ok {
			return nil, fmt.Errorf("entry point %q not in program", b.Entry)
		}
	}

	if len(m.Sources) > 0 {
		b.Sources = vfs.NewTree()
		for _, name := range m.Sources {
			f, ok := fileMap[sourcePrefix+name]
			if !ok {
				return nil, fmt.Errorf("restore source %q: zip entry not found", name)
			}
			data, err := readZipEntry(fileMap, sourcePrefix+name)
			if err != nil {
				return nil, fmt.Errorf("restore source %q: %w", name, err)
			}
			if err := b.Sources.Write(name, data); err != nil {
				return nil, fmt.Errorf("restore source %q: %w", name, err)
			}
			b.Sources.Files[name].Modified = f.Modified
		}
	}

	return b, nil
}

// WriteFile writes the bundle archive to path.
func (b *Bundle) WriteFile(path string) error {
	data, err := b.ToBytes()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ReadFile loads the bundle archive at path.
func ReadFile(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromBytes(data)
}

// IsBundle reports whether data starts like a zip archive.
func IsBundle(data []byte) bool {
	return bytes.HasPrefix(data, []byte("PK\x03\x04"))
}

func writeZipEntry(zw *zip.Writer, name string, data []byte, mod time.Time) error {
	hdr := &zip.FileHeader{Name: name, Method: zip.Deflate}
	if !mod.IsZero() {
		hdr.Modified = mod
	}
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("create zip entry %q: %w", name, err)
	}
	_, err = w.Write(data)
	return err
}

func readZipEntry(fileMap map[string]*zip.File, name string) ([]byte, error) {
	f, ok := fileMap[name]
	if !ok {
		return nil, fmt.Errorf("zip entry %q not found", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open zip entry %q: %w", name, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

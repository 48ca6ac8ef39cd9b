package batch

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

// ErrorsFile receives one line per failed point or row.
const ErrorsFile = "errors.txt"

// ErrShape reports a point whose ranged columns produce a different set
// of fields than the table's header.
var ErrShape = errors.New("table shape differs from header")

// tableFile is one streaming output table. Its header is written with
// the first row, since ranged columns only know their width once a point
// has been evaluated. Every later row must carry the same field names.
type tableFile struct {
	f      *os.File
	w      *bufio.Writer
	header bool
	names  []string
}

// output owns every file of a run. It is used by a single goroutine.
type output struct {
	dir     string
	fields  []string
	tables  map[string]*tableFile
	order   []string
	errs    *tableFile
	written int
}

func newOutput(dir string, tables []Table, pointFields []string) (*output, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	o := &output{dir: dir, fields: pointFields, tables: make(map[string]*tableFile)}
	for _, t := range tables {
		tf, err := createTable(filepath.Join(dir, t.Name+".txt"))
		if err != nil {
			o.close()
			return nil, err
		}
		o.tables[t.Name] = tf
		o.order = append(o.order, t.Name)
	}
	errs, err := createTable(filepath.Join(dir, ErrorsFile))
	if err != nil {
		o.close()
		return nil, err
	}
	o.errs = errs
	o.errs.writeLine(o.prefixHeader("Error"))
	o.errs.header = true
	return o, nil
}

func createTable(path string) (*tableFile, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating output table: %w", err)
	}
	return &tableFile{f: f, w: bufio.NewWriter(f)}, nil
}

func (t *tableFile) writeLine(fields []string) {
	t.w.WriteString(strings.Join(fields, "\t"))
	t.w.WriteByte('\n')
}

func (o *output) prefixHeader(names ...string) []string {
	out := append([]string{"Row", "Sub"}, o.fields...)
	return append(out, names...)
}

func (o *output) prefix(p pointResult) []string {
	out := append([]string{strconv.Itoa(p.Row + 1), strconv.Itoa(p.Sub + 1)}, p.Fields...)
	for len(out) < len(o.fields)+2 {
		out = append(out, "")
	}
	return out
}

// write appends the result of one point to its tables, or to the error
// file if it failed. A point whose fields do not match an established
// header is written to the error file instead and the mismatch returned.
func (o *output) write(p pointResult) error {
	if p.Err == nil {
		p.Err = o.checkShape(p)
	}
	if p.Err != nil {
		o.errs.writeLine(append(o.prefix(p), oneLine(p.Err.Error())))
		return p.Err
	}
	for _, name := range o.order {
		row, ok := p.Tables[name]
		if !ok {
			continue
		}
		tf := o.tables[name]
		if !tf.header {
			tf.writeLine(o.prefixHeader(row.Names...))
			tf.header = true
			tf.names = row.Names
		}
		tf.writeLine(append(o.prefix(p), row.Values...))
	}
	o.written++
	return nil
}

func (o *output) checkShape(p pointResult) error {
	for _, name := range o.order {
		row, ok := p.Tables[name]
		tf := o.tables[name]
		if !ok || !tf.header || slices.Equal(tf.names, row.Names) {
			continue
		}
		return fmt.Errorf("table %s: %w: header has %d fields %v, point has %d fields %v",
			name, ErrShape, len(tf.names), tf.names, len(row.Names), row.Names)
	}
	return nil
}

func (o *output) flush() error {
	var errs []error
	for _, name := range o.order {
		errs = append(errs, o.tables[name].w.Flush())
	}
	if o.errs != nil {
		errs = append(errs, o.errs.w.Flush())
	}
	return errors.Join(errs...)
}

func (o *output) close() error {
	errs := []error{o.flush()}
	for _, name := range o.order {
		errs = append(errs, o.tables[name].f.Close())
	}
	if o.errs != nil {
		errs = append(errs, o.errs.f.Close())
	}
	return errors.Join(errs...)
}

func oneLine(s string) string {
	return strings.NewReplacer("\n", " ", "\t", " ").Replace(s)
}

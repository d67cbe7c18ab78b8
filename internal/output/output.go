package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/nao1215/markdown"
	"github.com/pfrederiksen/pydocs/internal/config"
	"github.com/pfrederiksen/pydocs/internal/logger"
	"github.com/pfrederiksen/pydocs/internal/report"
	"github.com/pfrederiksen/pydocs/internal/storage"
)

// DefaultPager is used when neither the config nor $PAGER names one.
const DefaultPager = "less"

var ErrNoStorage = errors.New("file output needs a base directory")

// Writer renders tables to stdout or to files under the results directory.
type Writer struct {
	mode   string
	pager  string
	store  *storage.Storage
	stdout io.Writer
	log    *logger.Logger
	now    func() time.Time
}

// Option configures a Writer.
type Option func(*Writer)

func WithStdout(w io.Writer) Option {
	return func(o *Writer) { o.stdout = w }
}

func WithLogger(l *logger.Logger) Option {
	return func(o *Writer) { o.log = l }
}

// WithClock sets the time used to name result files.
func WithClock(now func() time.Time) Option {
	return func(o *Writer) { o.now = now }
}

// New creates a Writer for the output mode in cfg.
func New(cfg *config.Config, store *storage.Storage, opts ...Option) *Writer {
	w := &Writer{
		mode:   cfg.Output,
		pager:  cfg.Pager,
		store:  store,
		stdout: os.Stdout,
		log:    logger.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write renders tbl, which was produced by the named parser mode. A nil table
// writes nothing.
func (w *Writer) Write(mode string, tbl *report.Table) error {
	if tbl == nil {
		return nil
	}
	if err := tbl.Validate(); err != nil {
		return err
	}

	switch w.mode {
	case config.OutputConsole:
		return Console(w.stdout, tbl)
	case config.OutputPretty:
		return Pretty(w.stdout, tbl)
	case config.OutputMarkdown:
		return Markdown(w.stdout, mode, tbl)
	case config.OutputJSON:
		return JSON(w.stdout, tbl)
	case config.OutputFile:
		return w.file(mode, tbl)
	case config.OutputPager:
		return w.page(tbl)
	default:
		return fmt.Errorf("%w: %q", config.ErrInvalidOutput, w.mode)
	}
}

// Console prints one line per row, cells separated by a single space.
func Console(w io.Writer, tbl *report.Table) error {
	for _, rec := range tbl.Records() {
		if _, err := fmt.Fprintln(w, strings.Join(rec, " ")); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
	}
	return nil
}

// Pretty renders a bordered table.
func Pretty(w io.Writer, tbl *report.Table) error {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)

	header := make(table.Row, len(tbl.Header))
	for i, h := range tbl.Header {
		header[i] = h
	}
	t.AppendHeader(header)
	for _, row := range tbl.Rows {
		t.AppendRow(table.Row(row))
	}

	if _, err := io.WriteString(w, t.Render()+"\n"); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}

// Markdown renders a GitHub-flavored Markdown table under a heading naming mode.
func Markdown(w io.Writer, mode string, tbl *report.Table) error {
	records := tbl.Records()

	md := markdown.NewMarkdown(w)
	md.H2(mode)
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: records[0],
		Rows:   records[1:],
	})
	if err := md.Build(); err != nil {
		return fmt.Errorf("writing markdown: %w", err)
	}
	return nil
}

// JSON writes the rows as an array of objects keyed by column name.
func JSON(w io.Writer, tbl *report.Table) error {
	rows := make([]map[string]any, 0, len(tbl.Rows))
	for _, row := range tbl.Rows {
		obj := make(map[string]any, len(row))
		for i, cell := range row {
			obj[tbl.Header[i]] = cell
		}
		rows = append(rows, obj)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(rows)
}

// CSV writes the header and rows as comma-separated records.
func CSV(w io.Writer, tbl *report.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(tbl.Records()); err != nil {
		return fmt.Errorf("writing CSV: %w", err)
	}
	return nil
}

func (w *Writer) file(mode string, tbl *report.Table) error {
	if w.store == nil {
		return ErrNoStorage
	}

	f, err := w.store.CreateResult(mode, w.now())
	if err != nil {
		return err
	}
	if err := CSV(f, tbl); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing results file: %w", err)
	}

	w.log.Info("results file saved", logger.Fields{"path": f.Name()})
	return nil
}

// page pipes the pretty table through the pager. When no pager can be
// started the table is printed directly.
func (w *Writer) page(tbl *report.Table) error {
	var buf bytes.Buffer
	if err := Pretty(&buf, tbl); err != nil {
		return err
	}

	name := pagerCommand(w.pager)
	fields := strings.Fields(name)
	path, err := exec.LookPath(fields[0])
	if err != nil {
		w.log.Warn("pager not available, printing instead", logger.Fields{"pager": name})
		_, err := buf.WriteTo(w.stdout)
		return err
	}

	cmd := exec.Command(path, fields[1:]...)
	cmd.Stdin = &buf
	cmd.Stdout = w.stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("running pager %s: %w", name, err)
	}
	return nil
}

// pagerCommand picks the configured pager, then $PAGER, then DefaultPager.
func pagerCommand(configured string) string {
	for _, candidate := range []string{configured, os.Getenv("PAGER")} {
		if strings.TrimSpace(candidate) != "" {
			return candidate
		}
	}
	return DefaultPager
}

package record

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"classrecord/backend/internal/grading"
	"classrecord/backend/internal/importer"
	"classrecord/backend/internal/session"
	"classrecord/backend/internal/shared"
	"classrecord/backend/internal/store"
)

// driftTolerance is how far a stored grade may differ from the recomputed
// one before it is reported.
const driftTolerance = 0.005

// Service implements the lookup, upload, edit and live table operations
// over a record store.
type Service struct {
	store     store.RecordStore
	templates *grading.Registry
	sessions  *session.Manager
	logger    *zap.Logger
}

// NewService creates a new record Service
func NewService(st store.RecordStore, templates *grading.Registry, sessions *session.Manager, logger *zap.Logger) *Service {
	return &Service{
		store:     st,
		templates: templates,
		sessions:  sessions,
		logger:    logger,
	}
}

// LookupResult is a successful student lookup.
type LookupResult struct {
	Template string                `json:"template"`
	Record   grading.StudentRecord `json:"record"`
	Grade    string                `json:"grade"`
	Passed   bool                  `json:"passed"`
	Token    string                `json:"token"`
}

// DetailView is the record detail page rendered from a session snapshot.
type DetailView struct {
	Template  string                `json:"template"`
	Title     string                `json:"title"`
	FullName  string                `json:"fullName"`
	Record    grading.StudentRecord `json:"record"`
	Breakdown grading.Result        `json:"breakdown"`
}

// UploadReport summarizes a bulk upload.
type UploadReport struct {
	Total     int      `json:"total"`
	Committed int      `json:"committed"`
	Skipped   int      `json:"skipped"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

// Templates lists the configured grading templates.
func (s *Service) Templates() []*grading.Template {
	return s.templates.All()
}

// Template resolves a template name; empty selects the default.
func (s *Service) Template(name string) (*grading.Template, error) {
	tmpl, ok := s.templates.Get(name)
	if !ok {
		return nil, shared.ErrUnknownTemplate
	}
	return tmpl, nil
}

// Lookup matches a student's name and ID against the class record and opens
// a session snapshot for the detail view.
func (s *Service) Lookup(ctx context.Context, template, firstName, lastName, idNumber string) (*LookupResult, error) {
	if err := requireFields(map[string]string{
		shared.FieldFirstName: firstName,
		shared.FieldLastName:  lastName,
		shared.FieldIDNumber:  idNumber,
	}); err != nil {
		return nil, err
	}

	tmpl, err := s.Template(template)
	if err != nil {
		return nil, err
	}

	records, err := s.load(ctx, tmpl)
	if err != nil {
		return nil, err
	}

	rec, err := grading.FindRecord(records, firstName, lastName, idNumber)
	if err != nil {
		s.logger.Info("Lookup found no match", zap.String("template", tmpl.Name), zap.String("id_number", strings.TrimSpace(idNumber)))
		return nil, err
	}

	token, err := s.sessions.Create(ctx, tmpl.Name, rec)
	if err != nil {
		s.logger.Error("Failed to open session", zap.String("id_number", rec.IDNumber), zap.Error(err))
		return nil, err
	}

	return &LookupResult{
		Template: tmpl.Name,
		Record:   rec,
		Grade:    grading.FormatGrade(rec.Grade),
		Passed:   tmpl.Scale.Passed(rec.Grade),
		Token:    token,
	}, nil
}

// Detail renders the snapshot behind a session token.
func (s *Service) Detail(ctx context.Context, token string) (*DetailView, error) {
	snap, err := s.sessions.Load(ctx, token)
	if err != nil {
		return nil, err
	}
	tmpl, err := s.Template(snap.Template)
	if err != nil {
		return nil, err
	}

	return &DetailView{
		Template:  tmpl.Name,
		Title:     tmpl.Title,
		FullName:  grading.FullName(snap.Record),
		Record:    snap.Record,
		Breakdown: grading.Breakdown(snap.Record, tmpl),
	}, nil
}

// EndSession discards the snapshot behind a session token.
func (s *Service) EndSession(ctx context.Context, token string) error {
	return s.sessions.End(ctx, token)
}

// List returns the instructor table: every record recomputed and filtered by q.
func (s *Service) List(ctx context.Context, template, q string) ([]grading.StudentRecord, error) {
	tmpl, err := s.Template(template)
	if err != nil {
		return nil, err
	}
	records, err := s.load(ctx, tmpl)
	if err != nil {
		return nil, err
	}

	out := make([]grading.StudentRecord, 0, len(records))
	for _, rec := range records {
		if grading.MatchesSearch(rec, q) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Upload commits spreadsheet rows one at a time. Rows missing an identity
// cell are skipped; a row whose write fails is recorded and the rest of the
// batch still runs.
func (s *Service) Upload(ctx context.Context, template string, rows [][]string) (*UploadReport, error) {
	tmpl, err := s.Template(template)
	if err != nil {
		return nil, err
	}

	mapped, rejected := importer.MapRows(rows, tmpl)
	report := &UploadReport{
		Total:   len(mapped) + len(rejected),
		Skipped: len(rejected),
	}
	for _, v := range rejected {
		report.Errors = append(report.Errors, v.Error())
	}

	var lastErr error
	for _, row := range mapped {
		if err := ctx.Err(); err != nil {
			return report, shared.Unavailable("upload", err)
		}

		rec := grading.NormalizeRecord(row.Fields, tmpl)
		if err := s.store.Upsert(ctx, tmpl.Collection, rec.IDNumber, rec.Fields(tmpl)); err != nil {
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("row %d: %s: %v", row.Number, rec.IDNumber, publicMessage(err)))
			s.logger.Warn("Upload row failed", zap.Int("row", row.Number), zap.String("id_number", rec.IDNumber), zap.Error(err))
			lastErr = err
			continue
		}
		report.Committed++
	}

	s.logger.Info("Upload processed",
		zap.String("template", tmpl.Name),
		zap.Int("total", report.Total),
		zap.Int("committed", report.Committed),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
	)

	if report.Committed == 0 && report.Failed > 0 {
		return report, lastErr
	}
	return report, nil
}

// Save applies an edit to an existing record and rewrites it with a
// recomputed grade.
func (s *Service) Save(ctx context.Context, template, id string, fields map[string]any) (*grading.StudentRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, shared.ValidationError{Field: shared.FieldIDNumber, Reason: "is required"}
	}
	tmpl, err := s.Template(template)
	if err != nil {
		return nil, err
	}

	docs, err := s.store.ListAll(ctx, tmpl.Collection)
	if err != nil {
		return nil, err
	}
	var existing *shared.Document
	for i := range docs {
		if docs[i].ID == id {
			existing = &docs[i]
			break
		}
	}
	if existing == nil {
		return nil, shared.ErrNotFound
	}

	merged := withID(*existing).Fields
	for k, v := range fields {
		if k == shared.FieldIDNumber {
			if grading.NormalizeString(v) != id {
				return nil, shared.ValidationError{Field: shared.FieldIDNumber, Reason: "cannot be changed"}
			}
			continue
		}
		merged[k] = v
	}

	rec := grading.NormalizeRecord(merged, tmpl)
	if err := requireFields(map[string]string{
		shared.FieldFirstName: rec.FirstName,
		shared.FieldLastName:  rec.LastName,
	}); err != nil {
		return nil, err
	}

	if err := s.store.Upsert(ctx, tmpl.Collection, id, rec.Fields(tmpl)); err != nil {
		s.logger.Error("Failed to save record", zap.String("id_number", id), zap.Error(err))
		return nil, err
	}
	s.logger.Info("Record saved", zap.String("template", tmpl.Name), zap.String("id_number", id), zap.Float64("grade", rec.Grade))
	return &rec, nil
}

// Delete removes a record.
func (s *Service) Delete(ctx context.Context, template, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return shared.ValidationError{Field: shared.FieldIDNumber, Reason: "is required"}
	}
	tmpl, err := s.Template(template)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, tmpl.Collection, id); err != nil {
		s.logger.Error("Failed to delete record", zap.String("id_number", id), zap.Error(err))
		return err
	}
	s.logger.Info("Record deleted", zap.String("template", tmpl.Name), zap.String("id_number", id))
	return nil
}

// Export renders the whole class record as a workbook.
func (s *Service) Export(ctx context.Context, template string) (*bytes.Buffer, *grading.Template, error) {
	tmpl, err := s.Template(template)
	if err != nil {
		return nil, nil, err
	}
	records, err := s.load(ctx, tmpl)
	if err != nil {
		return nil, nil, err
	}
	buf, err := importer.Export(records, tmpl)
	if err != nil {
		return nil, nil, err
	}
	return buf, tmpl, nil
}

// Ping reports whether the record store and the session cache are reachable.
func (s *Service) Ping(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return err
	}
	if err := s.sessions.Ping(ctx); err != nil {
		return shared.Unavailable("session ping", err)
	}
	return nil
}

// ============================================================================
// Helper Functions
// ============================================================================

// load lists a template's collection through the normalizer.
func (s *Service) load(ctx context.Context, tmpl *grading.Template) ([]grading.StudentRecord, error) {
	docs, err := s.store.ListAll(ctx, tmpl.Collection)
	if err != nil {
		s.logger.Error("Failed to list records", zap.String("collection", tmpl.Collection), zap.Error(err))
		return nil, err
	}
	return s.normalize(docs, tmpl), nil
}

func (s *Service) normalize(docs []shared.Document, tmpl *grading.Template) []grading.StudentRecord {
	records := make([]grading.StudentRecord, 0, len(docs))
	for _, doc := range docs {
		doc = withID(doc)
		rec := grading.NormalizeRecord(doc.Fields, tmpl)
		s.checkDrift(doc, rec, tmpl)
		records = append(records, rec)
	}
	return records
}

// checkDrift reports stored grades that no longer match their scores.
func (s *Service) checkDrift(doc shared.Document, rec grading.StudentRecord, tmpl *grading.Template) {
	raw, ok := doc.Fields[tmpl.GradeField]
	if !ok {
		return
	}
	stored := grading.Normalize(raw, math.NaN())
	if math.IsNaN(stored) || math.Abs(stored-rec.Grade) <= driftTolerance {
		return
	}
	s.logger.Warn("Stored grade differs from recomputed grade",
		zap.String("collection", tmpl.Collection),
		zap.String("id_number", rec.IDNumber),
		zap.Float64("stored", stored),
		zap.Float64("computed", rec.Grade),
	)
}

// withID copies the document, filling idNumber from the document id when
// the field itself is absent.
func withID(doc shared.Document) shared.Document {
	doc = doc.Clone()
	if grading.NormalizeString(doc.Fields[shared.FieldIDNumber]) == "" {
		doc.Fields[shared.FieldIDNumber] = doc.ID
	}
	return doc
}

func requireFields(fields map[string]string) error {
	for _, name := range []string{shared.FieldIDNumber, shared.FieldLastName, shared.FieldFirstName} {
		v, ok := fields[name]
		if ok && strings.TrimSpace(v) == "" {
			return shared.ValidationError{Field: name, Reason: "is required"}
		}
	}
	return nil
}

// publicMessage strips driver detail from store errors shown to users.
func publicMessage(err error) string {
	var de *shared.Error
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}

package store

import (
	"bytes"
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/noah-isme/biblioteca-api/internal/models"
)

// SchemaVersion tags every bucket payload written by this build.
const SchemaVersion = 1

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type envelope struct {
	SchemaVersion int                 `json:"schema_version"`
	Items         jsoniter.RawMessage `json:"items"`
}

func encodeBucket(st state, bucket string) ([]byte, error) {
	var items interface{}
	switch bucket {
	case BucketBooks:
		items = sortedBooks(st.books)
	case BucketStudents:
		items = sortedStudents(st.students)
	case BucketLoans:
		items = sortedLoans(st.loans)
	case BucketSession:
		items = st.session
	case BucketPreferences:
		items = st.preferences
	default:
		return nil, fmt.Errorf("unknown bucket %q", bucket)
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", bucket, err)
	}
	return json.Marshal(envelope{SchemaVersion: SchemaVersion, Items: raw})
}

// unwrap returns the items of a payload. Payloads written before versioning
// are bare JSON values and are read as version 0.
func unwrap(bucket string, payload []byte) (jsoniter.RawMessage, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		return jsoniter.RawMessage(trimmed), nil
	}
	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("decode %s envelope: %w", bucket, err)
	}
	if env.SchemaVersion == 0 && env.Items == nil {
		// bare object (session or preferences) without an envelope
		return jsoniter.RawMessage(trimmed), nil
	}
	if env.SchemaVersion > SchemaVersion {
		return nil, fmt.Errorf("decode %s: schema version %d is newer than %d", bucket, env.SchemaVersion, SchemaVersion)
	}
	return env.Items, nil
}

func decodeBucket(st *state, bucket string, payload []byte) error {
	items, err := unwrap(bucket, payload)
	if err != nil {
		return err
	}
	if len(items) == 0 || string(items) == "null" {
		return nil
	}
	switch bucket {
	case BucketBooks:
		var books []models.Book
		if err := json.Unmarshal(items, &books); err != nil {
			return fmt.Errorf("decode %s: %w", bucket, err)
		}
		for _, b := range books {
			st.books[b.ID] = b
		}
	case BucketStudents:
		var students []models.Student
		if err := json.Unmarshal(items, &students); err != nil {
			return fmt.Errorf("decode %s: %w", bucket, err)
		}
		for _, s := range students {
			st.students[s.ID] = s
		}
	case BucketLoans:
		var loans []models.Loan
		if err := json.Unmarshal(items, &loans); err != nil {
			return fmt.Errorf("decode %s: %w", bucket, err)
		}
		for _, l := range loans {
			normalized, err := normalizeLoan(l)
			if err != nil {
				return fmt.Errorf("decode %s: %w", bucket, err)
			}
			st.loans[normalized.ID] = normalized
		}
	case BucketSession:
		var session models.Session
		if err := json.Unmarshal(items, &session); err != nil {
			return fmt.Errorf("decode %s: %w", bucket, err)
		}
		st.session = &session
	case BucketPreferences:
		var prefs models.Preferences
		if err := json.Unmarshal(items, &prefs); err != nil {
			return fmt.Errorf("decode %s: %w", bucket, err)
		}
		st.preferences = &prefs
	}
	return nil
}

// normalizeLoan keeps only active and returned as stored states.
func normalizeLoan(l models.Loan) (models.Loan, error) {
	switch l.Status {
	case models.LoanStatusActive, models.LoanStatusReturned:
	case models.LoanStatusOverdue, "":
		l.Status = models.LoanStatusActive
	default:
		return l, fmt.Errorf("loan %s has unknown status %q", l.ID, l.Status)
	}
	if l.Status == models.LoanStatusActive {
		l.ReturnDate = nil
	}
	return l, nil
}

// internal/service/import_service.go
package service

import (
	"encoding/csv"
	"io"
	"log"
	"strings"

	appErrors "github.com/leadflow/sms-backend/internal/errors"
	"github.com/leadflow/sms-backend/internal/model"
	"github.com/leadflow/sms-backend/internal/phone"
	"github.com/leadflow/sms-backend/internal/repository"
)

type ImportService struct {
	ContactRepo repository.ContactRepositoryInterface
}

type ImportResult struct {
	Total    int `json:"total"`
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// Import reads a CSV with a header row. "phone" is required
// (case-insensitive); first_name, last_name, email and tags (comma-separated)
// are optional. Rows with unparsable phones are skipped, not fatal.
func (s *ImportService) Import(r io.Reader) (*ImportResult, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, appErrors.NewImport("empty or unreadable file", 0)
	}

	cols := map[string]int{}
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	phoneCol, ok := cols["phone"]
	if !ok {
		return nil, appErrors.NewImport("missing required phone column", 0)
	}

	result := &ImportResult{}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.Total++
			result.Skipped++
			continue
		}
		result.Total++

		normalized, err := phone.Normalize(field(record, phoneCol))
		if err != nil {
			log.Println("import: skipping row with bad phone:", err)
			result.Skipped++
			continue
		}

		contact := &model.Contact{
			Phone:     normalized,
			FirstName: fieldAt(record, cols, "first_name"),
			LastName:  fieldAt(record, cols, "last_name"),
			Email:     fieldAt(record, cols, "email"),
		}
		if raw := fieldAt(record, cols, "tags"); raw != "" {
			contact.Tags = model.NormalizeTags(strings.Split(raw, ","))
		}

		if err := s.ContactRepo.Upsert(contact); err != nil {
			return nil, appErrors.NewPersistence("import contact", err)
		}
		result.Imported++
	}

	if result.Imported == 0 {
		return nil, appErrors.NewImport("no valid rows", result.Skipped)
	}
	return result, nil
}

func field(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func fieldAt(record []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok {
		return ""
	}
	return field(record, i)
}

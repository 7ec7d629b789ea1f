package core

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const maxRosterImportSize = 4 * 1024 * 1024 // 4MB (upload payload limit)

// rosterDocument is the on-disk shape of a student roster file.
//
//	students:
//	  - name: Alice Martin
//	    phone_number: "0601020304"
//	    email: alice@example.org
//	    address: 12 rue des Lilas
type rosterDocument struct {
	Students []rosterEntry `yaml:"students"`
}

type rosterEntry struct {
	Name        string `yaml:"name"`
	PhoneNumber string `yaml:"phone_number"`
	Email       string `yaml:"email"`
	Address     string `yaml:"address"`
}

// ParseStudentRoster converts a YAML roster file into student records.
// Rows are trimmed but not otherwise validated; the caller decides how to
// report per-row failures.
func ParseStudentRoster(data []byte) ([]Student, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("roster file is empty")
	}

	var doc rosterDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid roster yaml: %w", err)
	}
	if len(doc.Students) == 0 {
		return nil, errors.New("roster has no students entries")
	}

	out := make([]Student, 0, len(doc.Students))
	for _, e := range doc.Students {
		out = append(out, Student{
			Name:        strings.TrimSpace(e.Name),
			PhoneNumber: strings.TrimSpace(e.PhoneNumber),
			Email:       strings.TrimSpace(e.Email),
			Address:     strings.TrimSpace(e.Address),
		})
	}
	return out, nil
}

// BuildStudentCSV renders students as a CSV document with a header row.
func BuildStudentCSV(students []Student) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)

	if err := w.Write([]string{"id", "name", "phone_number", "email", "address"}); err != nil {
		return nil, err
	}
	for _, s := range students {
		row := []string{strconv.FormatInt(s.ID, 10), s.Name, s.PhoneNumber, s.Email, s.Address}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

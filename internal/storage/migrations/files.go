package migrations

import (
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

type sqlFile struct {
	name string
	body string
}

// sqlFiles returns the non-empty .sql files of dir sorted by name (001_, 002_, ...).
func sqlFiles(fsys fs.FS, dir string) ([]sqlFile, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read embedded %s migrations: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	files := make([]sqlFile, 0, len(names))
	for _, name := range names {
		data, err := fs.ReadFile(fsys, dir+"/"+name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		files = append(files, sqlFile{name: name, body: string(data)})
	}
	return files, nil
}

// splitStatements breaks a migration into single statements for drivers that
// reject multi-statement Exec. Comment lines are dropped. Semicolons inside
// quoted literals are not supported and are reported as an error.
func splitStatements(input string) ([]string, error) {
	var kept []string
	for _, line := range strings.Split(input, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		kept = append(kept, line)
	}
	joined := strings.Join(kept, "\n")

	inQuote := false
	for i := 0; i < len(joined); i++ {
		switch joined[i] {
		case '\'':
			if i+1 < len(joined) && joined[i+1] == '\'' {
				i++
				continue
			}
			inQuote = !inQuote
		case ';':
			if inQuote {
				return nil, fmt.Errorf("semicolon inside string literal at offset %d", i)
			}
		}
	}

	var stmts []string
	for _, part := range strings.Split(joined, ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts, nil
}

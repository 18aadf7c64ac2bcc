package session

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Account is one line of the declarative account list.
type Account struct {
	AppID       int
	AppHash     string
	SessionName string
	Phone       string
}

// Name is the human label of the account; the phone when known.
func (a Account) Name() string {
	if a.Phone != "" {
		return a.Phone
	}
	return a.SessionName
}

// ParseAccounts reads `api_id:api_hash:session_name[:phone]` lines.
// Blank lines and lines starting with # are skipped; an empty or non-numeric
// api_id and an empty api_hash fall back to the given defaults.
func ParseAccounts(r io.Reader, defaultAppID int, defaultAppHash string) ([]Account, error) {
	var accounts []Account

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, ":")
		if len(parts) < 3 {
			return nil, fmt.Errorf("account line %d: want api_id:api_hash:session_name[:phone], got %d fields", lineNo, len(parts))
		}

		acc := Account{
			AppID:       defaultAppID,
			AppHash:     defaultAppHash,
			SessionName: strings.TrimSpace(parts[2]),
		}
		if id, err := strconv.Atoi(strings.TrimSpace(parts[0])); err == nil {
			acc.AppID = id
		}
		if hash := strings.TrimSpace(parts[1]); hash != "" {
			acc.AppHash = hash
		}
		if len(parts) > 3 {
			acc.Phone = strings.TrimSpace(parts[3])
		}
		if acc.SessionName == "" {
			return nil, fmt.Errorf("account line %d: empty session name", lineNo)
		}
		accounts = append(accounts, acc)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read account list: %w", err)
	}
	return accounts, nil
}

// LoadAccounts parses the account list file at path.
func LoadAccounts(path string, defaultAppID int, defaultAppHash string) ([]Account, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open account list %s: %w", path, err)
	}
	defer f.Close()

	return ParseAccounts(f, defaultAppID, defaultAppHash)
}

package gemini

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"blissbuilder/internal/storage"
)

var ErrDailyLimit = errors.New("daily video generation limit reached")

// Usage counts video jobs per calendar day in a "YYYY-MM-DD:count" file.
type Usage struct {
	path  string
	limit int
	now   func() time.Time
}

func NewUsage(path string, limit int) *Usage {
	return &Usage{path: path, limit: limit, now: time.Now}
}

func (u *Usage) Check() error {
	if u.limit <= 0 {
		return nil
	}
	date, count := u.read()
	if date != u.today() {
		return nil
	}
	if count >= u.limit {
		return fmt.Errorf("%w: %d jobs, resets tomorrow", ErrDailyLimit, u.limit)
	}
	return nil
}

func (u *Usage) Increment() error {
	date, count := u.read()
	today := u.today()
	if date != today {
		count = 0
	}
	count++

	return storage.WriteText(u.path, fmt.Sprintf("%s:%d", today, count))
}

// Count returns today's job count.
func (u *Usage) Count() int {
	date, count := u.read()
	if date != u.today() {
		return 0
	}
	return count
}

func (u *Usage) today() string {
	return u.now().Format("2006-01-02")
}

func (u *Usage) read() (string, int) {
	data, err := os.ReadFile(u.path)
	if err != nil {
		return "", 0
	}
	parts := strings.Split(strings.TrimSpace(string(data)), ":")
	if len(parts) != 2 {
		return "", 0
	}
	count, _ := strconv.Atoi(parts[1])
	return parts[0], count
}

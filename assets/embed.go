package assets

import (
	"bytes"
	_ "embed"
	"io"
	"os"

	"github.com/classfeedback/feedback-bot/internal/domain"
)

//go:embed schedule.yaml
var scheduleYAML []byte

// Schedule loads the seed table from path, or the embedded one when path
// is empty.
func Schedule(path string) ([]domain.ScheduleEntry, error) {
	var r io.Reader = bytes.NewReader(scheduleYAML)
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	return domain.LoadSchedule(r)
}

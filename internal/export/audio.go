package export

import (
	"fmt"

	"github.com/jchantrell/gmdata/internal/archive"
)

func (e *Exporter) audioJobs() []job {
	tracks := e.archive.AudioTracks()
	jobs := make([]job, 0, len(tracks))
	for i, r := range tracks {
		desc := r.Name
		if desc == "" {
			desc = fmt.Sprintf("blob %d", i)
		}
		jobs = append(jobs, job{
			description: desc,
			run:         func() (result, error) { return e.exportTrack(r, i) },
		})
	}
	return jobs
}

// exportTrack writes one track. External tracks whose file cannot be read
// are skipped with a warning; they live outside the archive.
func (e *Exporter) exportTrack(r *archive.AudioResource, index int) (result, error) {
	var res result
	path := e.layout.AudioPath(r, index)
	if e.skip(path) {
		res.skipped++
		return res, nil
	}

	data, err := r.Bytes()
	if err != nil {
		if r.Embedded() {
			return res, err
		}
		e.log.Warn("Skipping unreadable external track", "track", r.Name, "file", r.Filename, "error", err)
		res.skipped++
		return res, nil
	}

	err = e.write(path, &res, func(path string) (int64, error) {
		return writeFile(path, data)
	})
	return res, err
}

package sensor

// ReadResult scripts one FakeDriver read.
type ReadResult struct {
	Sample Sample
	Err    error
}

// FakeDriver replays a scripted sequence of reads. When the script is
// exhausted the last result repeats.
type FakeDriver struct {
	Script []ReadResult
	Reads  int
}

func (f *FakeDriver) Read() (Sample, error) {
	i := f.Reads
	if i >= len(f.Script) {
		i = len(f.Script) - 1
	}
	f.Reads++
	r := f.Script[i]
	return r.Sample, r.Err
}

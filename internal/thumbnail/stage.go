package thumbnail

// stage is a step of the per-key pipeline. A pool is in exactly one stage at
// a time, and only the coordination queue moves it.
type stage int

const (
	stageProbeDisk stage = iota
	stageFetchOriginal
	stageDownsample
	stageEncode
	stageDecompress
	stageDeliver
)

// Metric label for the background disk write fired after a successful encode.
const diskWriteLabel = "disk_write"

func (s stage) String() string {
	switch s {
	case stageProbeDisk:
		return "disk_probe"
	case stageFetchOriginal:
		return "fetch_original"
	case stageDownsample:
		return "downsample"
	case stageEncode:
		return "encode"
	case stageDecompress:
		return "decompress"
	case stageDeliver:
		return "deliver"
	default:
		return "unknown"
	}
}

// firstStage is where a memory miss enters the pipeline.
func firstStage(hasDisk bool) stage {
	if hasDisk {
		return stageProbeDisk
	}
	return stageFetchOriginal
}

// transition returns the stage that follows s given whether s succeeded.
//
// A disk miss falls through to fetching the original; any failure after that
// ends the pipeline. A successful encode continues to decompression so the
// bitmap handed to observers is the one a later disk hit would produce.
func transition(s stage, ok bool) stage {
	switch s {
	case stageProbeDisk:
		if ok {
			return stageDecompress
		}
		return stageFetchOriginal
	case stageFetchOriginal:
		if ok {
			return stageDownsample
		}
		return stageDeliver
	case stageDownsample:
		if ok {
			return stageEncode
		}
		return stageDeliver
	case stageEncode:
		if ok {
			return stageDecompress
		}
		return stageDeliver
	default:
		return stageDeliver
	}
}

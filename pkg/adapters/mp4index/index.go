// Package mp4index reads presentation timestamps, keyframes and codec
// information from MP4/MOV containers without decoding any samples.
package mp4index

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/Eyevinn/mp4ff/mp4"
	"github.com/user/framepace/pkg/media"
)

// Sample is one video sample in decode order.
type Sample struct {
	PTS      int64 // presentation time in timescale units, edit list applied
	Keyframe bool
}

// Index describes the first video track of a file.
type Index struct {
	TrackID    uint32
	Timescale  uint32
	Duration   int64 // in timescale units, 0 if unknown
	Codec      Codec
	Width      int
	Height     int
	EditOffset int64 // edit list media time, already subtracted from Samples
	Samples    []Sample
}

// FromFile indexes the MP4 file at path.
func FromFile(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	return FromReader(f)
}

// FromBytes indexes MP4 data held in memory.
func FromBytes(data []byte) (*Index, error) {
	return FromReader(bytes.NewReader(data))
}

// FromReader indexes MP4 data from r.
func FromReader(r io.ReadSeeker) (*Index, error) {
	mp4File, err := mp4.DecodeFile(r)
	if err != nil {
		return nil, fmt.Errorf("decode mp4: %w", err)
	}

	if mp4File.IsFragmented() {
		return indexFragmented(mp4File)
	}
	return indexProgressive(mp4File)
}

func findVideoTrack(moov *mp4.MoovBox) *mp4.TrakBox {
	if moov == nil {
		return nil
	}
	for _, trak := range moov.Traks {
		if trak.Mdia != nil && trak.Mdia.Hdlr != nil && trak.Mdia.Hdlr.HandlerType == "vide" {
			return trak
		}
	}
	return nil
}

// newIndex fills the track level fields shared by both layouts.
func newIndex(trak *mp4.TrakBox) *Index {
	ix := &Index{
		TrackID:    trak.Tkhd.TrackID,
		Timescale:  1000,
		Codec:      detectCodecFromTrack(trak),
		EditOffset: editOffset(trak),
	}
	if trak.Mdia.Mdhd != nil {
		ix.Timescale = trak.Mdia.Mdhd.Timescale
		ix.Duration = int64(trak.Mdia.Mdhd.Duration)
	}
	if trak.Mdia.Minf != nil && trak.Mdia.Minf.Stbl != nil && trak.Mdia.Minf.Stbl.Stsd != nil {
		for _, child := range trak.Mdia.Minf.Stbl.Stsd.Children {
			if vse, ok := child.(*mp4.VisualSampleEntryBox); ok {
				ix.Width = int(vse.Width)
				ix.Height = int(vse.Height)
				break
			}
		}
	}
	return ix
}

// editOffset returns the media time where presentation starts according to
// the track's edit list. Empty edits (media time -1) only delay the track
// and are skipped.
func editOffset(trak *mp4.TrakBox) int64 {
	if trak.Edts == nil {
		return 0
	}
	for _, elst := range trak.Edts.Elst {
		for _, e := range elst.Entries {
			if e.MediaTime >= 0 {
				return e.MediaTime
			}
		}
	}
	return 0
}

func indexProgressive(mp4File *mp4.File) (*Index, error) {
	if mp4File.Moov == nil {
		return nil, fmt.Errorf("no moov box found")
	}

	trak := findVideoTrack(mp4File.Moov)
	if trak == nil {
		return nil, fmt.Errorf("no video track found")
	}
	ix := newIndex(trak)

	if trak.Mdia.Minf == nil || trak.Mdia.Minf.Stbl == nil {
		return nil, fmt.Errorf("no sample table found")
	}
	stbl := trak.Mdia.Minf.Stbl
	if stbl.Stsz == nil {
		return nil, fmt.Errorf("no stsz box found")
	}

	// Build sync sample set (keyframes)
	syncSamples := make(map[uint32]bool)
	if stbl.Stss != nil {
		for _, sampleNr := range stbl.Stss.SampleNumber {
			syncSamples[sampleNr] = true
		}
	}

	sampleCount := stbl.Stsz.SampleNumber
	ix.Samples = make([]Sample, 0, sampleCount)
	for sampleNr := uint32(1); sampleNr <= sampleCount; sampleNr++ {
		var decodeTime uint64
		if stbl.Stts != nil {
			decodeTime, _ = stbl.Stts.GetDecodeTime(sampleNr)
		}
		pts := int64(decodeTime) - ix.EditOffset
		if stbl.Ctts != nil {
			pts += int64(stbl.Ctts.GetCompositionTimeOffset(sampleNr))
		}
		ix.Samples = append(ix.Samples, Sample{
			PTS:      pts,
			Keyframe: syncSamples[sampleNr] || len(syncSamples) == 0,
		})
	}

	return ix, nil
}

func indexFragmented(mp4File *mp4.File) (*Index, error) {
	var moov *mp4.MoovBox
	if mp4File.Init != nil {
		moov = mp4File.Init.Moov
	}
	trak := findVideoTrack(moov)
	if trak == nil {
		return nil, fmt.Errorf("no video track found")
	}
	ix := newIndex(trak)

	var trex *mp4.TrexBox
	if moov.Mvex != nil {
		for _, t := range moov.Mvex.Trexs {
			if t.TrackID == ix.TrackID {
				trex = t
				break
			}
		}
	}

	var end int64
	for _, seg := range mp4File.Segments {
		for _, frag := range seg.Fragments {
			if frag.Moof == nil {
				continue
			}

			for _, traf := range frag.Moof.Trafs {
				if traf.Tfhd.TrackID != ix.TrackID {
					continue
				}

				var baseDecodeTime uint64
				if traf.Tfdt != nil {
					baseDecodeTime = traf.Tfdt.BaseMediaDecodeTime()
				}

				samples, err := frag.GetFullSamples(trex)
				if err != nil {
					return nil, fmt.Errorf("get samples: %w", err)
				}

				currentTime := baseDecodeTime
				for _, sample := range samples {
					ix.Samples = append(ix.Samples, Sample{
						PTS:      int64(currentTime) + int64(sample.CompositionTimeOffset) - ix.EditOffset,
						Keyframe: sample.Flags == mp4.SyncSampleFlags,
					})
					currentTime += uint64(sample.Dur)
				}
				if int64(currentTime) > end {
					end = int64(currentTime)
				}
			}
		}
	}

	// The init segment of a fragmented file usually carries no duration.
	if ix.Duration == 0 {
		ix.Duration = end
	}
	return ix, nil
}

// TimeBase returns the track time base, 1/timescale.
func (ix *Index) TimeBase() media.Rational {
	return media.NewRational(1, int(ix.Timescale))
}

// PresentationTimes returns sample timestamps in display order.
func (ix *Index) PresentationTimes() []int64 {
	pts := make([]int64, len(ix.Samples))
	for i, s := range ix.Samples {
		pts[i] = s.PTS
	}
	sort.Slice(pts, func(i, j int) bool { return pts[i] < pts[j] })
	return pts
}

// KeyframeAtOrBefore returns the presentation time of the latest keyframe
// at or before ts. Targets before the first keyframe clamp to it.
func (ix *Index) KeyframeAtOrBefore(ts int64) int64 {
	best, found := int64(0), false
	first, haveFirst := int64(0), false
	for _, s := range ix.Samples {
		if !s.Keyframe {
			continue
		}
		if !haveFirst || s.PTS < first {
			first, haveFirst = s.PTS, true
		}
		if s.PTS <= ts && (!found || s.PTS > best) {
			best, found = s.PTS, true
		}
	}
	if found {
		return best
	}
	return first
}

// KeyframeCount returns the number of sync samples.
func (ix *Index) KeyframeCount() int {
	n := 0
	for _, s := range ix.Samples {
		if s.Keyframe {
			n++
		}
	}
	return n
}

// FrameRate estimates frames per second from the presentation span.
// It returns 0 when fewer than two samples are present.
func (ix *Index) FrameRate() float64 {
	if len(ix.Samples) < 2 || ix.Timescale == 0 {
		return 0
	}
	pts := ix.PresentationTimes()
	span := pts[len(pts)-1] - pts[0]
	if span <= 0 {
		return 0
	}
	return float64(len(pts)-1) * float64(ix.Timescale) / float64(span)
}

// DurationSeconds returns the track duration in seconds.
func (ix *Index) DurationSeconds() float64 {
	if ix.Timescale == 0 {
		return 0
	}
	return float64(ix.Duration) / float64(ix.Timescale)
}

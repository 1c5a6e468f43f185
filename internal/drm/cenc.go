package drm

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"

	"github.com/Eyevinn/mp4ff/mp4"
)

// Adapted from mohaanymo-veld's internal/decryptor package: locate the
// init segment's tenc box for the default KID/IV size, then walk each
// moof's senc/trun boxes to AES-CTR decrypt every sample in the following
// mdat, honoring CENC subsample maps.

type tencInfo struct {
	perSampleIVSize byte
	defaultKID      []byte
	constantIV      []byte
}

func decryptCENC(combined []byte, contentKey []byte) ([]byte, error) {
	segStart := findFragmentStart(combined)
	if segStart < 0 {
		// No moof/styp boundary found: nothing fragmented to decrypt, the
		// merged run is either all-init or already plaintext.
		return combined, nil
	}

	initData := combined[:segStart]
	fragData := combined[segStart:]

	init, err := mp4.DecodeFile(bytes.NewReader(initData))
	if err != nil {
		return nil, fmt.Errorf("parsing init section: %w", err)
	}
	if init.Init == nil {
		return nil, fmt.Errorf("no init segment found in merged run")
	}

	tenc, err := extractTenc(init.Init)
	if err != nil {
		// Not actually protected; hand the bytes back unchanged.
		return combined, nil
	}

	decryptedFrag, err := decryptFragments(fragData, contentKey, tenc)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(initData)+len(decryptedFrag))
	out = append(out, initData...)
	out = append(out, decryptedFrag...)
	return out, nil
}

func extractTenc(init *mp4.InitSegment) (*tencInfo, error) {
	if init.Moov == nil {
		return nil, fmt.Errorf("no moov box")
	}

	for _, trak := range init.Moov.Traks {
		if trak.Mdia == nil || trak.Mdia.Minf == nil || trak.Mdia.Minf.Stbl == nil {
			continue
		}
		stsd := trak.Mdia.Minf.Stbl.Stsd
		if stsd == nil {
			continue
		}

		for _, child := range stsd.Children {
			var sinf *mp4.SinfBox
			switch entry := child.(type) {
			case *mp4.VisualSampleEntryBox:
				sinf = entry.Sinf
			case *mp4.AudioSampleEntryBox:
				sinf = entry.Sinf
			}

			if sinf != nil && sinf.Schi != nil && sinf.Schi.Tenc != nil {
				tenc := sinf.Schi.Tenc
				return &tencInfo{
					perSampleIVSize: tenc.DefaultPerSampleIVSize,
					defaultKID:      tenc.DefaultKID,
					constantIV:      tenc.DefaultConstantIV,
				}, nil
			}
		}
	}

	return nil, fmt.Errorf("no tenc box found")
}

type sencEntry struct {
	iv         []byte
	subsamples []subsampleEntry
}

type subsampleEntry struct {
	clearBytes     uint16
	protectedBytes uint32
}

type trunSample struct {
	size uint32
}

// decryptFragments walks concatenated moof/mdat pairs across the whole
// run, since a decryption run may span several segments merged into one
// contiguous byte stream.
func decryptFragments(data []byte, key []byte, tenc *tencInfo) ([]byte, error) {
	result := make([]byte, len(data))
	copy(result, data)

	offset := 0
	for offset+8 <= len(result) {
		size := boxSize(result, offset)
		if size < 8 || offset+size > len(result) {
			break
		}
		boxType := string(result[offset+4 : offset+8])

		if boxType == "moof" {
			moofData := result[offset : offset+size]
			nextOffset := offset + size

			mdatOffset := -1
			mdatSize := 0
			for o := nextOffset; o+8 <= len(result); {
				s := boxSize(result, o)
				if s < 8 || o+s > len(result) {
					break
				}
				t := string(result[o+4 : o+8])
				if t == "mdat" {
					mdatOffset = o
					mdatSize = s
					break
				}
				o += s
			}

			if mdatOffset >= 0 {
				if err := decryptFragment(result, moofData, mdatOffset, mdatSize, key, tenc); err != nil {
					return nil, err
				}
			}
		}

		offset += size
	}

	return result, nil
}

func decryptFragment(result []byte, moofData []byte, mdatOffset, mdatSize int, key []byte, tenc *tencInfo) error {
	senc, samples, err := parseMoof(moofData, tenc.perSampleIVSize)
	if err != nil {
		return fmt.Errorf("parsing moof: %w", err)
	}
	if len(senc) == 0 && len(tenc.constantIV) == 0 {
		return nil // not encrypted
	}

	mdatHeaderSize := 8
	if mdatSize >= 16 && binary.BigEndian.Uint32(result[mdatOffset:mdatOffset+4]) == 1 {
		mdatHeaderSize = 16
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return fmt.Errorf("constructing AES cipher: %w", err)
	}

	sampleOffset := 0
	for i, sample := range samples {
		if sampleOffset+int(sample.size) > mdatSize-mdatHeaderSize {
			break
		}

		var iv []byte
		if i < len(senc) && len(senc[i].iv) > 0 {
			iv = senc[i].iv
		} else {
			iv = tenc.constantIV
		}
		if len(iv) == 0 {
			sampleOffset += int(sample.size)
			continue
		}
		ivFull := make([]byte, 16)
		copy(ivFull, iv)

		var subs []subsampleEntry
		if i < len(senc) {
			subs = senc[i].subsamples
		}

		start := mdatOffset + mdatHeaderSize + sampleOffset
		end := start + int(sample.size)
		if err := decryptSample(block, result[start:end], ivFull, subs); err != nil {
			return fmt.Errorf("decrypting sample %d: %w", i, err)
		}

		sampleOffset += int(sample.size)
	}

	return nil
}

func decryptSample(block cipher.Block, sample []byte, iv []byte, subsamples []subsampleEntry) error {
	if len(sample) == 0 {
		return nil
	}

	ivCopy := make([]byte, 16)
	copy(ivCopy, iv)

	if len(subsamples) == 0 {
		stream := cipher.NewCTR(block, ivCopy)
		stream.XORKeyStream(sample, sample)
		return nil
	}

	offset := 0
	for _, sub := range subsamples {
		offset += int(sub.clearBytes)
		if offset+int(sub.protectedBytes) > len(sample) {
			break
		}

		stream := cipher.NewCTR(block, ivCopy)
		region := sample[offset : offset+int(sub.protectedBytes)]
		stream.XORKeyStream(region, region)

		blocks := (int(sub.protectedBytes) + 15) / 16
		incrementIV(ivCopy, blocks)

		offset += int(sub.protectedBytes)
	}

	return nil
}

func incrementIV(iv []byte, blocks int) {
	for b := 0; b < blocks; b++ {
		for i := len(iv) - 1; i >= 0; i-- {
			iv[i]++
			if iv[i] != 0 {
				break
			}
		}
	}
}

func parseMoof(moofData []byte, defaultIVSize byte) ([]sencEntry, []trunSample, error) {
	var senc []sencEntry
	var samples []trunSample

	offset := 8
	for offset+8 <= len(moofData) {
		size := boxSize(moofData, offset)
		if size < 8 || offset+size > len(moofData) {
			break
		}
		boxType := string(moofData[offset+4 : offset+8])

		if boxType == "traf" {
			trafEnd := offset + size
			trafOffset := offset + 8

			for trafOffset+8 <= trafEnd {
				trafSize := boxSize(moofData, trafOffset)
				if trafSize < 8 || trafOffset+trafSize > trafEnd {
					break
				}
				trafType := string(moofData[trafOffset+4 : trafOffset+8])

				switch trafType {
				case "trun":
					samples = parseTrun(moofData[trafOffset : trafOffset+trafSize])
				case "senc":
					senc = parseSenc(moofData[trafOffset:trafOffset+trafSize], defaultIVSize)
				}

				trafOffset += trafSize
			}
		}

		offset += size
	}

	return senc, samples, nil
}

func parseTrun(data []byte) []trunSample {
	if len(data) < 16 {
		return nil
	}

	flags := binary.BigEndian.Uint32(data[8:12]) & 0x00FFFFFF
	sampleCount := binary.BigEndian.Uint32(data[12:16])

	offset := 16
	if flags&0x001 != 0 {
		offset += 4 // data-offset-present
	}
	if flags&0x004 != 0 {
		offset += 4 // first-sample-flags-present
	}

	samples := make([]trunSample, 0, sampleCount)
	for i := uint32(0); i < sampleCount && offset < len(data); i++ {
		var s trunSample
		if flags&0x100 != 0 {
			offset += 4 // sample-duration-present
		}
		if flags&0x200 != 0 {
			if offset+4 <= len(data) {
				s.size = binary.BigEndian.Uint32(data[offset:])
			}
			offset += 4
		}
		if flags&0x400 != 0 {
			offset += 4 // sample-flags-present
		}
		if flags&0x800 != 0 {
			offset += 4 // sample-composition-time-offsets-present
		}
		samples = append(samples, s)
	}

	return samples
}

func parseSenc(data []byte, defaultIVSize byte) []sencEntry {
	if len(data) < 16 {
		return nil
	}

	flags := binary.BigEndian.Uint32(data[8:12]) & 0x00FFFFFF
	sampleCount := binary.BigEndian.Uint32(data[12:16])
	hasSubsamples := flags&0x2 != 0

	ivSize := int(defaultIVSize)
	if ivSize == 0 {
		ivSize = 8
	}

	offset := 16
	entries := make([]sencEntry, 0, sampleCount)

	for i := uint32(0); i < sampleCount && offset < len(data); i++ {
		if offset+ivSize > len(data) {
			break
		}
		iv := make([]byte, ivSize)
		copy(iv, data[offset:offset+ivSize])
		offset += ivSize

		var subs []subsampleEntry
		if hasSubsamples && offset+2 <= len(data) {
			subCount := binary.BigEndian.Uint16(data[offset:])
			offset += 2
			for j := uint16(0); j < subCount && offset+6 <= len(data); j++ {
				subs = append(subs, subsampleEntry{
					clearBytes:     binary.BigEndian.Uint16(data[offset:]),
					protectedBytes: binary.BigEndian.Uint32(data[offset+2:]),
				})
				offset += 6
			}
		}

		entries = append(entries, sencEntry{iv: iv, subsamples: subs})
	}

	return entries
}

// findFragmentStart locates the first styp/moof/sidx/emsg box that follows
// the init section's moov box, i.e. where the fragmented media begins.
func findFragmentStart(data []byte) int {
	offset := 0
	moovFound := false

	for offset+8 <= len(data) {
		size := boxSize(data, offset)
		if size < 8 {
			return -1
		}
		boxType := string(data[offset+4 : offset+8])

		if boxType == "moov" {
			moovFound = true
		}
		if moovFound {
			switch boxType {
			case "styp", "moof", "sidx", "emsg":
				return offset
			}
		}

		offset += size
	}

	return -1
}

func boxSize(data []byte, offset int) int {
	if offset+8 > len(data) {
		return -1
	}
	size := int(binary.BigEndian.Uint32(data[offset:]))
	if size == 1 && offset+16 <= len(data) {
		size = int(binary.BigEndian.Uint32(data[offset+12:]))
	}
	return size
}

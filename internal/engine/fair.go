package engine

import (
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"hash"
	"io"
	"strconv"
	"sync"
)

// Seeds identify a provably fair series. The server seed keys the HMAC and
// the client seed salts every message.
type Seeds struct {
	Server string
	Client string
}

// Valid reports whether both seeds are set.
func (s Seeds) Valid() error {
	if s.Server == "" || s.Client == "" {
		return errors.New("engine: fair play needs a server seed and a client seed")
	}
	return nil
}

// Rounds is a RandomSource that hands every round its own stream.
type Rounds interface {
	RandomSource
	NextRound() (src RandomSource, nonce uint64)
}

// FairSource is the stream for one round: HMAC-SHA256(server, "client:nonce:block")
// for block 0, 1, 2... read four bytes per float, most significant first.
type FairSource struct {
	nonce uint64

	mu     sync.Mutex
	mac    hash.Hash
	prefix string
	block  uint64
	buf    []byte
}

// NewFairSource starts the stream for nonce at its first byte.
func NewFairSource(seeds Seeds, nonce uint64) *FairSource {
	return &FairSource{
		nonce:  nonce,
		mac:    hmac.New(sha256.New, []byte(seeds.Server)),
		prefix: seeds.Client + ":" + strconv.FormatUint(nonce, 10) + ":",
	}
}

// Nonce is the round this stream replays.
func (f *FairSource) Nonce() uint64 { return f.nonce }

func (f *FairSource) Float64() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	var (
		v     float64
		scale = 1.0 / 256
	)
	for range 4 {
		if len(f.buf) == 0 {
			f.refill()
		}
		v += float64(f.buf[0]) * scale
		f.buf = f.buf[1:]
		scale /= 256
	}
	return v
}

func (f *FairSource) refill() {
	f.mac.Reset()
	io.WriteString(f.mac, f.prefix+strconv.FormatUint(f.block, 10))
	f.buf = f.mac.Sum(nil)
	f.block++
}

// FairSeries issues one FairSource per round with consecutive nonces, so any
// round can be replayed from the seeds and the nonce it was played on.
type FairSeries struct {
	seeds Seeds

	mu      sync.Mutex
	next    uint64
	current *FairSource
}

// NewFairSeries starts a series whose first round uses nonce start.
func NewFairSeries(seeds Seeds, start uint64) (*FairSeries, error) {
	if err := seeds.Valid(); err != nil {
		return nil, err
	}
	return &FairSeries{seeds: seeds, next: start}, nil
}

// NextRound advances the nonce and returns the new round's stream.
func (s *FairSeries) NextRound() (RandomSource, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src := s.advanceLocked()
	return src, src.Nonce()
}

// Float64 draws from the latest round, starting one if none has begun.
func (s *FairSeries) Float64() float64 {
	s.mu.Lock()
	src := s.current
	if src == nil {
		src = s.advanceLocked()
	}
	s.mu.Unlock()
	return src.Float64()
}

// Nonce is the nonce the next round will use.
func (s *FairSeries) Nonce() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

func (s *FairSeries) advanceLocked() *FairSource {
	s.current = NewFairSource(s.seeds, s.next)
	s.next++
	return s.current
}

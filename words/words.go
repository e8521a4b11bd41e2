// words/words.go
package words

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/valyala/fastrand"
)

// Word is a dictated word together with its best-effort enrichment.
// Definition and Audio stay empty when the dictionary lookup fails.
type Word struct {
	Word       string `json:"word"`
	Definition string `json:"definition"`
	Audio      string `json:"audio"`
}

// Rand is the uniform random source used for word and player selection.
// Tests inject a deterministic implementation.
type Rand interface {
	Uint32n(max uint32) uint32
}

// FastRand is the default Rand, backed by valyala/fastrand.
type FastRand struct{}

func (FastRand) Uint32n(max uint32) uint32 { return fastrand.Uint32n(max) }

var ErrEmptyBank = errors.New("word bank has no usable list")

const fallbackDifficulty = "easy"

// Bank holds the word lists keyed by difficulty.
type Bank struct {
	lists map[string][]string
}

func NewBank(lists map[string][]string) *Bank {
	return &Bank{lists: lists}
}

// LoadBank reads a difficulty -> word list mapping from a JSON file.
func LoadBank(path string) (*Bank, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read words file: %w", err)
	}

	var lists map[string][]string
	if err := json.Unmarshal(raw, &lists); err != nil {
		return nil, fmt.Errorf("parse words file: %w", err)
	}
	return &Bank{lists: lists}, nil
}

// Pick selects one word uniformly at random from the requested difficulty
// list, falling back to the easy list when the difficulty is unknown.
func (b *Bank) Pick(difficulty string, rng Rand) (string, error) {
	list := b.lists[difficulty]
	if len(list) == 0 {
		list = b.lists[fallbackDifficulty]
	}
	if len(list) == 0 {
		return "", ErrEmptyBank
	}
	return list[rng.Uint32n(uint32(len(list)))], nil
}

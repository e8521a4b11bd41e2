// words/dictionary.go
package words

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/duckuru/spellin-bee/logger"
)

// Dictionary enriches words with a definition and a pronunciation audio
// URL via an external dictionary API. Lookups are cached and every
// failure degrades to empty fields; a missing definition must never
// block a turn from starting.
type Dictionary struct {
	baseURL string
	client  *http.Client
	cache   *lru.ARCCache
}

func NewDictionary(baseURL string, cacheSize int) (*Dictionary, error) {
	cache, err := lru.NewARC(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("lru new instance of arc cache: %w", err)
	}

	return &Dictionary{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 3 * time.Second},
		cache:   cache,
	}, nil
}

type dictionaryEntry struct {
	Meanings []struct {
		Definitions []struct {
			Definition string `json:"definition"`
		} `json:"definitions"`
	} `json:"meanings"`
	Phonetics []struct {
		Audio string `json:"audio"`
	} `json:"phonetics"`
}

// Enrich returns the word with definition and audio filled in when the
// lookup succeeds, and the bare word otherwise.
func (d *Dictionary) Enrich(ctx context.Context, word string) Word {
	result := Word{Word: word}

	if cached, ok := d.cache.Get(word); ok {
		return cached.(Word)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		d.baseURL+"/"+url.PathEscape(word), nil)
	if err != nil {
		return result
	}

	resp, err := d.client.Do(req)
	if err != nil {
		logger.Log.Warnf("dictionary lookup failed for word %q: %v", word, err)
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Log.Warnf("dictionary lookup for word %q returned status %d", word, resp.StatusCode)
		return result
	}

	var entries []dictionaryEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		logger.Log.Warnf("dictionary response decode failed for word %q: %v", word, err)
		return result
	}

	if len(entries) > 0 {
		e := entries[0]
		if len(e.Meanings) > 0 && len(e.Meanings[0].Definitions) > 0 {
			result.Definition = e.Meanings[0].Definitions[0].Definition
		}
		if len(e.Phonetics) > 0 {
			result.Audio = e.Phonetics[0].Audio
		}
	}

	d.cache.Add(word, result)
	return result
}

// Picker combines the word bank, the random source and the dictionary
// into the single selection step a turn start needs.
type Picker struct {
	bank *Bank
	dict *Dictionary
	rng  Rand
}

func NewPicker(bank *Bank, dict *Dictionary, rng Rand) *Picker {
	return &Picker{bank: bank, dict: dict, rng: rng}
}

func (p *Picker) Pick(ctx context.Context, difficulty string) (Word, error) {
	word, err := p.bank.Pick(difficulty, p.rng)
	if err != nil {
		return Word{}, err
	}
	if p.dict == nil {
		return Word{Word: word}, nil
	}
	return p.dict.Enrich(ctx, word), nil
}

package match

import "github.com/hitoshi/castsite/internal/model"

// DefaultThreshold は対応付けを採用する最小の類似度。
const DefaultThreshold = 0.25

// Similarity は2つの単語集合のJaccard係数を返す。どちらかが空なら0。
func Similarity(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	if len(a) > len(b) {
		a, b = b, a
	}

	inter := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// Matcher はエピソードごとに最も類似度の高い動画を選ぶ。
// 1つのエピソードに対応する動画は高々1本だが、同じ動画が複数のエピソードに対応することはある。
type Matcher struct {
	normalizer *Normalizer
	threshold  float64
}

// NewMatcher はMatcherを生成する。thresholdが0以下の場合はDefaultThresholdを使う。
func NewMatcher(normalizer *Normalizer, threshold float64) *Matcher {
	if normalizer == nil {
		normalizer = NewNormalizer(nil, nil)
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Matcher{normalizer: normalizer, threshold: threshold}
}

// Threshold は採用する最小の類似度を返す。
func (m *Matcher) Threshold() float64 {
	return m.threshold
}

// Match は入力のエピソード順に対応付けを返す。
// 同点の場合は動画一覧で先に現れたものを採用する。
func (m *Matcher) Match(episodes []model.EpisodeRef, uploads []model.Upload) []model.Match {
	matches := make([]model.Match, 0, len(episodes))
	if len(uploads) == 0 {
		return matches
	}

	uploadTokens := make([]map[string]struct{}, len(uploads))
	for i, up := range uploads {
		uploadTokens[i] = m.normalizer.Tokens(up.Title)
	}

	for _, ep := range episodes {
		epTokens := m.normalizer.Tokens(ep.Title)
		if len(epTokens) == 0 {
			continue
		}

		best, bestScore := -1, 0.0
		for i, ut := range uploadTokens {
			if score := Similarity(epTokens, ut); score > bestScore {
				best, bestScore = i, score
			}
		}

		if best >= 0 && bestScore >= m.threshold {
			matches = append(matches, model.Match{
				EpisodeID: ep.ID,
				VideoID:   uploads[best].VideoID,
				Score:     bestScore,
			})
		}
	}

	return matches
}

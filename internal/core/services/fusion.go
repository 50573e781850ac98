package services

import (
	"sort"
)

// rankedList is one retrieval path's result, best first.
type rankedList struct {
	name   string
	weight float64
	ids    []string
}

// fusedHit is an ID with its fused score.
type fusedHit struct {
	id    string
	score float64

	// order is the position at which the id was first seen across all
	// lists, used to break score ties reproducibly.
	order int
}

// fuseRankings merges ranked lists with weighted Reciprocal Rank Fusion:
// score(id) = sum over lists of weight / (k + rank), with 1-indexed ranks.
//
// Scores are normalised into [0, 1] by the best achievable score, which is
// being ranked first in every list. An id present in only one list is kept.
// Ordering is total: score, then first appearance, then id.
func fuseRankings(k float64, lists ...rankedList) []fusedHit {
	if k <= 0 {
		k = 60
	}

	var maxScore float64
	index := make(map[string]int)
	var hits []fusedHit

	for _, list := range lists {
		if list.weight <= 0 {
			continue
		}
		maxScore += list.weight / (k + 1)

		for rank, id := range list.ids {
			contribution := list.weight / (k + float64(rank+1))
			if i, ok := index[id]; ok {
				hits[i].score += contribution
				continue
			}
			index[id] = len(hits)
			hits = append(hits, fusedHit{id: id, score: contribution, order: len(hits)})
		}
	}

	if maxScore > 0 {
		for i := range hits {
			hits[i].score /= maxScore
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		if hits[i].order != hits[j].order {
			return hits[i].order < hits[j].order
		}
		return hits[i].id < hits[j].id
	})

	return hits
}

// scoredID is a raw hit from one retrieval path.
type scoredID struct {
	chunkID    string
	documentID string
	score      float64
}

// docAggregate is a document ranked by its chunks' scores.
type docAggregate struct {
	documentID string
	score      float64

	// bestChunk is the chunk that ranked highest for this document.
	bestChunk string

	order int
}

// aggregateByDocument collapses a chunk list into a document list. Chunk
// scores are combined with max or sum; the document keeps the position of
// its first chunk to break ties.
func aggregateByDocument(hits []scoredID, sum bool) []docAggregate {
	index := make(map[string]int)
	var docs []docAggregate

	for _, h := range hits {
		if i, ok := index[h.documentID]; ok {
			if sum {
				docs[i].score += h.score
			} else if h.score > docs[i].score {
				docs[i].score = h.score
			}
			continue
		}
		index[h.documentID] = len(docs)
		docs = append(docs, docAggregate{
			documentID: h.documentID,
			score:      h.score,
			bestChunk:  h.chunkID,
			order:      len(docs),
		})
	}

	sort.SliceStable(docs, func(i, j int) bool {
		if docs[i].score != docs[j].score {
			return docs[i].score > docs[j].score
		}
		return docs[i].order < docs[j].order
	})

	return docs
}

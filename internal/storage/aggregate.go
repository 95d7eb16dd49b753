package storage

import (
	"sort"

	"github.com/shopspring/decimal"

	"token-flow-lab/internal/domain"
)

type pairAccumulator struct {
	other   string
	volume  decimal.Decimal
	inflow  decimal.Decimal // into the central token
	outflow decimal.Decimal // out of the central token
	swaps   int64
}

// AggregatePairFlows folds swaps into one TokenPair per counterparty of token.
// A swap whose TokenOut is token adds its USD value to the central inflow (and
// the counterparty's outflow); a swap whose TokenIn is token adds to the
// central outflow. Swaps not involving token, self-swaps and swaps before
// since are ignored. Results are ordered by volume DESC, then counterparty ASC,
// and truncated to limit when limit > 0.
func AggregatePairFlows(token string, swaps []*domain.Swap, since int64, limit int) []domain.TokenPair {
	acc := make(map[string]*pairAccumulator)
	for _, s := range swaps {
		if s == nil || s.Timestamp < since {
			continue
		}
		other := s.Counterparty(token)
		if other == "" {
			continue
		}

		a, ok := acc[other]
		if !ok {
			a = &pairAccumulator{other: other}
			acc[other] = a
		}

		usd := decimal.NewFromFloat(s.AmountUSD)
		a.volume = a.volume.Add(usd)
		a.swaps++
		if s.TokenOut == token {
			a.inflow = a.inflow.Add(usd)
		} else {
			a.outflow = a.outflow.Add(usd)
		}
	}

	list := make([]*pairAccumulator, 0, len(acc))
	for _, a := range acc {
		list = append(list, a)
	}
	sort.Slice(list, func(i, j int) bool {
		if c := list[i].volume.Cmp(list[j].volume); c != 0 {
			return c > 0
		}
		return list[i].other < list[j].other
	})
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}

	pairs := make([]domain.TokenPair, 0, len(list))
	for _, a := range list {
		inflow := a.inflow.InexactFloat64()
		outflow := a.outflow.InexactFloat64()
		pairs = append(pairs, domain.TokenPair{
			CentralToken:           token,
			OtherToken:             a.other,
			TotalVolumeUSD:         a.volume.InexactFloat64(),
			TotalSwaps:             a.swaps,
			CentralTokenInflowUSD:  inflow,
			CentralTokenOutflowUSD: outflow,
			OtherTokenInflowUSD:    outflow,
			OtherTokenOutflowUSD:   inflow,
		})
	}
	return pairs
}

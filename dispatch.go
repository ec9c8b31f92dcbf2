/*
Copyright 2024 Viralship Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package viralship

import (
	"context"
	"fmt"

	"github.com/viralship/viralship/model"
)

// dispatchTarget is one resolved destination for a provider order.
type dispatchTarget struct {
	PostID string
	URL    string
}

// resolveTargets maps a transaction to the URLs its orders should point at.
// Fan-out checkouts (likes, reels) read the selected posts; everything else
// resolves to a single link, with the profile URL as the fallback for
// follower-style services.
func (v *Viralship) resolveTargets(ctx context.Context, txn *model.Transaction, maxTargets int) ([]dispatchTarget, error) {
	switch txn.CheckoutType {
	case model.CheckoutLikes, model.CheckoutReels:
		posts, err := v.datasource.GetTransactionPosts(ctx, txn.TransactionID)
		if err != nil {
			return nil, err
		}
		posts = model.DeduplicatePosts(posts)
		if maxTargets > 0 && len(posts) > maxTargets {
			posts = posts[:maxTargets]
		}

		targets := make([]dispatchTarget, 0, len(posts))
		for i := range posts {
			url := posts[i].TargetURL()
			if url == "" {
				continue
			}
			targets = append(targets, dispatchTarget{PostID: posts[i].PostID, URL: url})
		}
		if len(targets) > 0 {
			return targets, nil
		}
		// A fan-out checkout with no usable posts degrades to the single
		// target resolution below rather than dropping the purchase.
		fallthrough
	default:
		url := ""
		if txn.TargetLink != "" {
			url = model.NormalizeLink(txn.TargetLink)
		} else if txn.TargetUsername != "" {
			url = model.ProfileURL(txn.TargetUsername)
		}
		if url == "" {
			return nil, fmt.Errorf("transaction %s has no dispatch target", txn.TransactionID)
		}
		return []dispatchTarget{{URL: url}}, nil
	}
}

// splitQuantity divides the purchased quantity across n targets. Every
// target gets the floor share and the remainder goes to the first target, so
// the shares always sum back to the original quantity.
func splitQuantity(total int64, n int) []int64 {
	if n <= 0 {
		return nil
	}
	base := total / int64(n)
	remainder := total % int64(n)

	shares := make([]int64, n)
	for i := range shares {
		shares[i] = base
	}
	shares[0] += remainder
	return shares
}

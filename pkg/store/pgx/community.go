package pgx

import (
	"context"
	"fmt"

	"github.com/iou-concept/kompas/pkg/common"
)

// PublishCommunities writes the new community set under the next generation
// number and moves the head pointer in the same transaction, so readers flip
// from the old snapshot to the new one atomically.
func (s *GraphDBStore) PublishCommunities(ctx context.Context, communities []common.Community) error {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin community publish: %w", err)
	}
	defer tx.Rollback(ctx)

	var generation int64
	err = tx.QueryRow(ctx, `SELECT nextval('community_generation_seq')`).Scan(&generation)
	if err != nil {
		return fmt.Errorf("next community generation: %w", err)
	}

	for _, c := range communities {
		_, err := tx.Exec(ctx, `
			INSERT INTO communities
				(generation, id, name, summary, key_themes, member_domains, entity_ids, coherence_score)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			generation, c.ID, c.Name, c.Summary,
			emptyIfNil(c.KeyThemes), emptyIfNil(c.MemberDomains), emptyIfNil(c.EntityIDs),
			c.CoherenceScore,
		)
		if err != nil {
			return fmt.Errorf("insert community: %w", err)
		}
	}

	_, err = tx.Exec(ctx, `UPDATE community_head SET generation = $1`, generation)
	if err != nil {
		return fmt.Errorf("move community head: %w", err)
	}
	_, err = tx.Exec(ctx, `DELETE FROM communities WHERE generation < $1`, generation)
	if err != nil {
		return fmt.Errorf("prune old communities: %w", err)
	}
	return tx.Commit(ctx)
}

const communitiesSQL = `
SELECT c.id, c.name, c.summary, c.key_themes, c.member_domains, c.entity_ids, c.coherence_score
FROM communities c
JOIN community_head h ON h.generation = c.generation
ORDER BY c.coherence_score DESC, c.id`

func (s *GraphDBStore) Communities(ctx context.Context) ([]common.Community, error) {
	rows, err := s.conn.Query(ctx, communitiesSQL)
	if err != nil {
		return nil, fmt.Errorf("list communities: %w", err)
	}
	defer rows.Close()

	out := []common.Community{}
	for rows.Next() {
		var c common.Community
		err := rows.Scan(&c.ID, &c.Name, &c.Summary, &c.KeyThemes, &c.MemberDomains, &c.EntityIDs, &c.CoherenceScore)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *GraphDBStore) CommunitiesForDomain(ctx context.Context, domainID string) ([]common.Community, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT c.id, c.name, c.summary, c.key_themes, c.member_domains, c.entity_ids, c.coherence_score
		FROM communities c
		JOIN community_head h ON h.generation = c.generation
		WHERE $1 = ANY(c.member_domains)
		ORDER BY c.coherence_score DESC, c.id`, domainID)
	if err != nil {
		return nil, fmt.Errorf("communities for domain: %w", err)
	}
	defer rows.Close()

	var out []common.Community
	for rows.Next() {
		var c common.Community
		err := rows.Scan(&c.ID, &c.Name, &c.Summary, &c.KeyThemes, &c.MemberDomains, &c.EntityIDs, &c.CoherenceScore)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func emptyIfNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

package database

import (
	"context"

	"github.com/viralship/viralship/internal/apierror"
	"github.com/viralship/viralship/model"
)

func (d Datasource) GetTransactionPosts(ctx context.Context, transactionID string) ([]model.Post, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT post_id, transaction_id, code, url, type, username, created_at
		FROM transaction_posts
		WHERE transaction_id = $1
		ORDER BY created_at ASC
	`, transactionID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve posts", err)
	}
	defer rows.Close()

	var posts []model.Post
	for rows.Next() {
		post := model.Post{}
		err := rows.Scan(&post.PostID, &post.TransactionID, &post.Code, &post.URL, &post.Type, &post.Username, &post.CreatedAt)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan post", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to iterate posts", err)
	}

	return posts, nil
}

package ddb

import (
	"context"
	"fmt"

	"github.com/kylejryan/insurance-ops/internal/apperr"
	"github.com/kylejryan/insurance-ops/internal/models"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
)

// CreateUser inserts a profile, failing if the username is taken.
func (r *Repo) CreateUser(ctx context.Context, u models.User) error {
	item, err := attributevalue.MarshalMap(toUserItem(u))
	if err != nil {
		return err
	}
	return r.putNew(ctx, "user.create", "user", item)
}

// GetUser loads a profile by username.
func (r *Repo) GetUser(ctx context.Context, username string) (models.User, error) {
	item, err := r.get(ctx, key(UserKeys(username)))
	if err != nil {
		return models.User{}, fmt.Errorf("user.get: %w", err)
	}
	if item == nil {
		return models.User{}, apperr.New(apperr.KindNotFound, "user.get", "user not found")
	}
	var it userItem
	if err := attributevalue.UnmarshalMap(item, &it); err != nil {
		return models.User{}, fmt.Errorf("decode user: %w", err)
	}
	return it.model(), nil
}

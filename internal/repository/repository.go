package repository

import "context"

type Repository interface {
	SaveUtterance(ctx context.Context, record UtteranceRecord) error
}

package activity

import "time"

// QueryOptions provides filtering options for querying events.
type QueryOptions struct {
	UserID           string // only this user
	ExcludeUserID    string // everyone but this user
	Kinds            []Kind
	SinceID          int64     // exclusive lower bound on id; implies ascending order
	Since            time.Time // exclusive lower bound on the client-reported timestamp
	CreatedSince     time.Time // exclusive lower bound on server ingestion time
	OnlySignificant  bool
	RequireEmbedding bool
	Ascending        bool
	Limit            int
}

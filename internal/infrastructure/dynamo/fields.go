package dynamo

// DynamoDB attribute names used in update expressions inside this package.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldRefreshToken = "refresh_token"
	fieldUpdatedAt    = "updated_at"
)

package auth

// Well-known roles. RoleUser is the implicit fallback assigned at token
// issuance when a user has no role rows.
const (
	RoleUser      = "USER"
	RoleModerator = "MODERATOR"
	RoleAdmin     = "ADMIN"
)

// Permission keys checked by the business handlers.
const (
	PermReviewsCreate   = "reviews.create"
	PermReviewsModerate = "reviews.moderate"
)

package models

// UserProfile is the slice of the buyer profile this core reads. Profiles are
// owned by the account service.
type UserProfile struct {
	ID               string `bson:"id" json:"id"`
	DiscountApproved bool   `bson:"discountApproved" json:"discountApproved"`
	FCMToken         string `bson:"fcmToken,omitempty" json:"-"`
}

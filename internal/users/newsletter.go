package users

import (
	"context"

	"github.com/pkg/errors"

	"github.com/swaymx/sway-api/internal/store"
	"github.com/swaymx/sway-api/internal/validate"
)

type SubscribeInput struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

type SubscribeResult struct {
	UserID            int64 `json:"user_id"`
	Created           bool  `json:"created"`
	AlreadySubscribed bool  `json:"already_subscribed"`
}

// Newsletter manages the newsletter opt-in flag.
type Newsletter struct {
	Store store.Store
}

// Subscribe opts the address in, creating a placeholder user when the
// email has never been seen.
func (n *Newsletter) Subscribe(ctx context.Context, in SubscribeInput) (SubscribeResult, error) {
	in.Email = NormalizeEmail(in.Email)
	if err := validate.Struct(in); err != nil {
		return SubscribeResult{}, err
	}

	var res SubscribeResult
	err := n.Store.WithTx(ctx, func(tx store.Tx) error {
		u, created, err := FindOrCreate(ctx, tx, Identity{
			Email:           in.Email,
			FirstName:       defaultFirstName,
			PaternalSurname: "Newsletter",
			Newsletter:      true,
		})
		if err != nil {
			return err
		}
		res = SubscribeResult{UserID: u.ID, Created: created}
		switch {
		case created:
		case u.NewsletterOptIn:
			res.AlreadySubscribed = true
		default:
			if err := tx.SetNewsletter(ctx, u.ID, true); err != nil {
				return errors.Wrap(err, "users: set newsletter")
			}
		}
		return nil
	})
	if err != nil {
		return SubscribeResult{}, err
	}
	return res, nil
}

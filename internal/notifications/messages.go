package notifications

import (
	"affiliate-server/internal/clients/platform"
	"fmt"
	"strings"
)

// FormatAmount renders a monetary amount for user-facing messages
func FormatAmount(amount float64, currency string) string {
	return fmt.Sprintf("%.2f %s", amount, strings.ToUpper(currency))
}

// OfferPublished announces a newly published offer to everyone in the
// experience.
func OfferPublished(experienceID, offerName string) Notification {
	return Notification{
		Kind: KindOfferPublished,
		Push: platform.PushNotification{
			ExperienceID: experienceID,
			Title:        "New offer available",
			Content:      fmt.Sprintf("The offer %q is now live. Grab your link and start promoting.", offerName),
		},
	}
}

// CreativeUploaded announces a new creative asset on an offer
func CreativeUploaded(experienceID, offerName, creativeName string) Notification {
	return Notification{
		Kind: KindCreativeUploaded,
		Push: platform.PushNotification{
			ExperienceID: experienceID,
			Title:        "New creative added",
			Content:      fmt.Sprintf("A new asset %q was added to %q.", creativeName, offerName),
		},
	}
}

// ApplicationApproved tells one affiliate their application was approved
func ApplicationApproved(experienceID, userID string) Notification {
	return Notification{
		Kind: KindApplicationStatus,
		Push: platform.PushNotification{
			ExperienceID: experienceID,
			UserIDs:      []string{userID},
			Title:        "Application approved",
			Content:      "You're in! Your affiliate application was approved. Head over to pick an offer.",
			IsMention:    true,
		},
	}
}

// ApplicationRejected tells one affiliate their application was rejected
func ApplicationRejected(experienceID, userID string) Notification {
	return Notification{
		Kind: KindApplicationStatus,
		Push: platform.PushNotification{
			ExperienceID: experienceID,
			UserIDs:      []string{userID},
			Title:        "Application update",
			Content:      "Your affiliate application was not accepted this time.",
			IsMention:    true,
		},
	}
}

// PayoutIssued tells one affiliate their pending balance was paid out and
// carries the details needed for the emailed receipt.
func PayoutIssued(experienceID, userID string, amount float64, currency string) Notification {
	return Notification{
		Kind: KindPayoutIssued,
		Push: platform.PushNotification{
			ExperienceID: experienceID,
			UserIDs:      []string{userID},
			Title:        "Payout sent",
			Content:      fmt.Sprintf("Your commission payout of %s is on its way.", FormatAmount(amount, currency)),
			IsMention:    true,
		},
		ReceiptUserID:   userID,
		ReceiptAmount:   amount,
		ReceiptCurrency: currency,
	}
}

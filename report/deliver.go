package report

import (
	"context"

	"xdao.co/sealsweep/model"
)

// Deliverer is the single-delivery contract used by DeliverAll.
type Deliverer interface {
	Deliver(ctx context.Context, r model.Report, extra ...Embed) (Status, error)
}

// Outcome summarises DeliverAll.
type Outcome struct {
	Sent    int
	Skipped bool
}

// DeliverAll splits r into batches so each delivery stays within MaxEmbeds,
// counting len(extra) against the first batch only. The attachment, note and
// extra embeds ride on the first batch. It stops at the first failure and
// never retries.
//
// A report with no profiles but an attachment or extra embeds is still sent once.
func DeliverAll(ctx context.Context, d Deliverer, r model.Report, extra ...Embed) (Outcome, error) {
	var out Outcome
	firstCap := MaxEmbeds - len(extra)
	if firstCap < 0 {
		return out, model.NewError(model.KindDeliveryFailure, model.ReasonPayloadTooLarge, "too many extra embeds")
	}

	var batches [][]model.Profile
	if len(r.Profiles) > firstCap {
		batches = append(batches, r.Profiles[:firstCap:firstCap])
		batches = append(batches, Batches(r.Profiles[firstCap:], MaxEmbeds)...)
	} else {
		batches = [][]model.Profile{r.Profiles}
	}
	if len(batches[0]) == 0 && len(batches) == 1 && r.Attachment == nil && len(extra) == 0 && r.Note == "" {
		return out, nil
	}

	for i, b := range batches {
		part := model.Report{Profiles: b}
		var ex []Embed
		if i == 0 {
			part.Attachment = r.Attachment
			part.Note = r.Note
			ex = extra
		}
		st, err := d.Deliver(ctx, part, ex...)
		if err != nil {
			return out, err
		}
		if st == Skipped {
			out.Skipped = true
			return out, nil
		}
		out.Sent++
	}
	return out, nil
}

package report

import "xdao.co/sealsweep/model"

// ErrNotConfigured describes a skipped delivery to an empty or placeholder URL.
var ErrNotConfigured error = &model.Error{
	Kind:    model.KindConfigurationError,
	Reason:  model.ReasonPlaceholder,
	Message: "webhook url not configured",
}

package state

import "strings"

// MaskEmail keeps the first character of the local part and the domain.
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return email
	}
	return email[:1] + "***" + email[at:]
}

// Mask returns a copy of s that is safe to log: every email is masked.
func (s State) Mask() State {
	out := s.Clone()
	out.Entities.Email = MaskEmail(out.Entities.Email)
	if out.CRMPayload != nil {
		out.CRMPayload.Email = MaskEmail(out.CRMPayload.Email)
	}
	for i := range out.AnalyticsEvents {
		if email, ok := out.AnalyticsEvents[i].Attrs["email"].(string); ok {
			out.AnalyticsEvents[i].Attrs["email"] = MaskEmail(email)
		}
	}
	return out
}

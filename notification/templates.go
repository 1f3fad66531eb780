package notification

import (
	"fmt"
	"strings"

	"grievance/models"
)

const dateLayout = "2 Jan 2006 15:04 MST"

// Render builds the subject and plain-text body for a notification
func Render(kind models.NotificationKind, complaint *models.Complaint, metadata map[string]string) (string, string) {
	category := strings.ReplaceAll(string(complaint.Category), "_", " ")

	switch kind {
	case models.KindStatusChanged:
		if metadata[models.MetaEvent] == "submitted" {
			subject := fmt.Sprintf("Complaint %s registered", complaint.ID)
			var b strings.Builder
			fmt.Fprintf(&b, "Your %s complaint has been registered with id %s.", category, complaint.ID)
			if complaint.SLA.TargetResolutionDate != nil {
				fmt.Fprintf(&b, " Expected resolution by %s.", complaint.SLA.TargetResolutionDate.Format(dateLayout))
			}
			return subject, b.String()
		}
		subject := fmt.Sprintf("Complaint %s is now %s", complaint.ID, statusLabel(complaint.Status))
		var b strings.Builder
		fmt.Fprintf(&b, "The status of your %s complaint %s changed to %s.", category, complaint.ID, statusLabel(complaint.Status))
		if complaint.Status == models.StatusDuplicate && complaint.DuplicateOf != nil {
			fmt.Fprintf(&b, " It is being tracked under complaint %s.", *complaint.DuplicateOf)
		}
		if remarks := metadata[models.MetaRemarks]; remarks != "" {
			fmt.Fprintf(&b, "\nRemarks: %s", remarks)
		}
		return subject, b.String()

	case models.KindAssigned:
		subject := fmt.Sprintf("Complaint %s assigned to you", complaint.ID)
		var b strings.Builder
		if name := metadata[models.MetaRecipientName]; name != "" {
			fmt.Fprintf(&b, "Hello %s,\n", name)
		}
		fmt.Fprintf(&b, "Complaint %s (%s) at %s is now assigned to you.", complaint.ID, category, complaint.Location.Address)
		if reason := metadata[models.MetaReason]; reason != "" {
			fmt.Fprintf(&b, "\nReason: %s", reason)
		}
		return subject, b.String()

	case models.KindEscalated:
		level := metadata[models.MetaLevel]
		if level == "" {
			level = fmt.Sprint(complaint.SLA.EscalationLevel)
		}
		subject := fmt.Sprintf("Complaint %s escalated to level %s", complaint.ID, level)
		var b strings.Builder
		fmt.Fprintf(&b, "Complaint %s (%s) at %s escalated to level %s.", complaint.ID, category, complaint.Location.Address, level)
		if reason := metadata[models.MetaReason]; reason != "" {
			fmt.Fprintf(&b, "\nReason: %s", reason)
		}
		switch id, name := metadata[models.MetaEscalatedTo], metadata[models.MetaRecipientName]; {
		case id != "" && name != "":
			fmt.Fprintf(&b, "\nEscalated to: %s (%s)", name, id)
		case id != "":
			fmt.Fprintf(&b, "\nEscalated to: %s", id)
		default:
			b.WriteString("\nNo eligible admin was found; please assign manually.")
		}
		return subject, b.String()
	}

	return fmt.Sprintf("Complaint %s update", complaint.ID), fmt.Sprintf("Complaint %s was updated.", complaint.ID)
}

func statusLabel(status models.ComplaintStatus) string {
	return strings.ReplaceAll(string(status), "_", " ")
}

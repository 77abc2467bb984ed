package service

import (
	"strings"

	"flowdesk/internal/model"
)

// RenderTemplate resolves {{request.*}} placeholders in a rule's
// message or subject from the triggering request.
func RenderTemplate(tpl string, req *model.Request) string {
	if tpl == "" || req == nil {
		return tpl
	}
	assignee := ""
	if req.AssignedTo != nil {
		assignee = *req.AssignedTo
	}
	dueDate := ""
	if req.DueDate != nil {
		dueDate = req.DueDate.Format("2006-01-02T15:04:05Z07:00")
	}
	return strings.NewReplacer(
		"{{request.id}}", req.ID,
		"{{request.title}}", req.Title,
		"{{request.status}}", string(req.Status),
		"{{request.priority}}", string(req.Priority),
		"{{request.assignee}}", assignee,
		"{{request.due_date}}", dueDate,
		"{{company.id}}", req.CompanyID,
	).Replace(tpl)
}

package workitems

// Field reference names consumed from WorkItem.Fields.
const (
	FieldID           = "System.Id"
	FieldWorkItemType = "System.WorkItemType"
	FieldTeamProject  = "System.TeamProject"
	FieldTitle        = "System.Title"
	FieldParent       = "System.Parent"
	FieldSteps        = "Microsoft.VSTS.TCM.Steps"

	// DefaultUserAcceptanceField is tenant-defined; config may override it.
	DefaultUserAcceptanceField = "Custom.UserAcceptanceStatus"
)

// ParentProjection is the minimal field set fetched while walking up the hierarchy.
var ParentProjection = []string{FieldWorkItemType, FieldParent, FieldTitle, FieldID}

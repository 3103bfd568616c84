package constants

// PermissionRoles maps each permission to roles allowed to perform it.
var PermissionRoles = map[string][]string{
	ViewData:           {Admin, ProjectOwner, Buyer},
	InitializeLedger:   {Admin},
	CreatePaymentAsset: {Admin},
	CreateProject:      {ProjectOwner},
	BuyCredits:         {Buyer},
	RequestOffset:      {Buyer},
	ReviewOffset:       {Admin},
	FundAccount:        {Buyer},
	ManageUsers:        {Admin},
}

// AllowedRole returns true if role is in the list of allowed roles for the permission.
func AllowedRole(permission, role string) bool {
	roles, ok := PermissionRoles[permission]
	if !ok {
		return false
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

package permissions

func init() {
	caps := []*Capability{
		{
			ID:          "org.view",
			Module:      "org",
			Description: "View organisation profile and settings",
		},
		{
			ID:          "org.manage",
			Module:      "org",
			DependsOn:   []string{"org.view"},
			Description: "Edit organisation profile, branding, and status",
		},
		{
			ID:          "unit.view",
			Module:      "org",
			Description: "View organisational units and their metadata",
		},
		{
			ID:          "unit.manage",
			Module:      "org",
			DependsOn:   []string{"unit.view"},
			Description: "Create, edit, attach, and remove organisational units",
		},
		{
			ID:          "audience.view",
			Module:      "org",
			Description: "View audiences and their rosters",
		},
		{
			ID:          "audience.manage",
			Module:      "org",
			DependsOn:   []string{"audience.view"},
			Description: "Create, edit, attach, and remove audiences",
		},
		{
			ID:          "member.view",
			Module:      "members",
			Description: "View organisation members",
		},
		{
			ID:          "member.manage",
			Module:      "members",
			DependsOn:   []string{"member.view"},
			Description: "Add, edit, and remove organisation members",
		},
		{
			ID:          "role.view",
			Module:      "members",
			Description: "View custom roles and capability grants",
		},
		{
			ID:          "role.manage",
			Module:      "members",
			DependsOn:   []string{"role.view"},
			Description: "Create, edit, and delete custom roles",
		},
		{
			ID:          "invite.view",
			Module:      "invites",
			Description: "View pending invites and batch status",
		},
		{
			ID:          "invite.create",
			Module:      "invites",
			DependsOn:   []string{"invite.view"},
			Implies:     []string{"member.view"},
			Description: "Send single and bulk invites",
		},
		{
			ID:          "attendance.view",
			Module:      "academics",
			Description: "View attendance sessions and records",
		},
		{
			ID:          "attendance.record",
			Module:      "academics",
			DependsOn:   []string{"attendance.view"},
			Description: "Record and correct attendance",
		},
		{
			ID:          "fees.view",
			Module:      "academics",
			Description: "View fee summaries and ledgers",
		},
		{
			ID:          "dashboard.view",
			Module:      "dashboard",
			Description: "Resolve and view dashboard configurations",
		},
	}

	for _, def := range caps {
		if err := Register(def); err != nil {
			panic(err)
		}
	}
}

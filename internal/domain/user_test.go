package domain

import "testing"

func strPtr(s string) *string { return &s }

func TestUserUpdateNormalize(t *testing.T) {
	admin := RoleAdmin
	blankRole := Role("  ")

	tests := []struct {
		name      string
		in        UserUpdate
		wantEmpty bool
		wantRole  bool
		wantName  string
	}{
		{"absent fields", UserUpdate{}, true, false, ""},
		{"blank name and empty password", UserUpdate{Name: strPtr("  "), Password: strPtr("")}, true, false, ""},
		{"blank role dropped", UserUpdate{Role: &blankRole}, true, false, ""},
		{"role kept even when unchanged", UserUpdate{Role: &admin}, false, true, ""},
		{"name trimmed", UserUpdate{Name: strPtr("  Ann ")}, false, false, "Ann"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Normalize()
			if got.IsEmpty() != tt.wantEmpty {
				t.Errorf("IsEmpty() = %v, want %v", got.IsEmpty(), tt.wantEmpty)
			}
			if got.HasRole() != tt.wantRole {
				t.Errorf("HasRole() = %v, want %v", got.HasRole(), tt.wantRole)
			}
			if tt.wantName != "" && (got.Name == nil || *got.Name != tt.wantName) {
				t.Errorf("Name = %v, want %q", got.Name, tt.wantName)
			}
		})
	}
}

func TestUserUpdateKeepsPasswordWhitespace(t *testing.T) {
	got := UserUpdate{Password: strPtr(" pass word ")}.Normalize()
	if got.Password == nil || *got.Password != " pass word " {
		t.Errorf("Password = %v, want it unmodified", got.Password)
	}
}

func TestCustomerUpdateApply(t *testing.T) {
	active := CustomerStatusActive
	c := &Customer{ID: 1, OwnerID: 7, Name: "Acme", Status: CustomerStatusNew}

	CustomerUpdate{Name: strPtr("Acme Ltd"), Status: &active}.Apply(c)

	if c.Name != "Acme Ltd" || c.Status != CustomerStatusActive || c.OwnerID != 7 {
		t.Errorf("Apply() = %+v", c)
	}
	if (CustomerUpdate{}).IsEmpty() != true {
		t.Error("zero update should be empty")
	}
}

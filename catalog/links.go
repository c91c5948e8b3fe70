package catalog

// LinkTable is a many-to-many association table between two tables. Its two columns form the
// primary key.
type LinkTable struct {
	Name       string
	FromTable  string
	ToTable    string
	FromColumn string
	ToColumn   string
	OnDelete   OnDelete
}

// Link derives the association table between from and to. The name is deterministic:
// "[prefix_]from_to_link". A self link uses source/target columns.
func Link(prefix, from, to string, onDelete OnDelete) LinkTable {
	name := from + "_" + to + "_link"
	if prefix != "" {
		name = prefix + "_" + name
	}

	fromColumn, toColumn := from+"_identifier", to+"_identifier"
	if from == to {
		fromColumn, toColumn = "source_identifier", "target_identifier"
	}

	return LinkTable{
		Name:       name,
		FromTable:  from,
		ToTable:    to,
		FromColumn: fromColumn,
		ToColumn:   toColumn,
		OnDelete:   onDelete,
	}
}

// LinkFor returns the link table backing a list relationship of owner.
func LinkFor(owner *Descriptor, spec RelationshipSpec) LinkTable {
	if spec.Inverse {
		return Link(spec.LinkPrefix, spec.Target, owner.Table, spec.OnDelete)
	}
	return Link(spec.LinkPrefix, owner.Table, spec.Target, spec.OnDelete)
}

// Columns returns the (owner, target) columns of l as seen from a relationship.
func (l LinkTable) Columns(inverse bool) (owner, target string) {
	if inverse {
		return l.ToColumn, l.FromColumn
	}
	return l.FromColumn, l.ToColumn
}

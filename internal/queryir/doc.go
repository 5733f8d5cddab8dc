// Package queryir provides the statement intermediate representation used
// by the mutation applier, the change log and the delta resolver.
//
// Statements are built from registry-checked identifiers and ir.Value
// literals, validated, then compiled to parameterized SQL by querysql.
// Nothing a client sends reaches SQL text except identifiers that passed
// the registry allow-list and the identifier format check; every literal
// becomes a bound parameter.
//
// # Sealed Interfaces
//
// Statement and Predicate are sealed with marker methods so backends can
// switch exhaustively:
//
//	switch s := stmt.(type) {
//	case Select:
//	case Insert:
//	case Update:
//	case Delete:
//	}
//
// # Account Scoping
//
// Update and Delete must carry a filter. Callers always include an Equals
// on idAccount so that tenant isolation is a property of the statement
// itself rather than of post-filtering.
package queryir

// Package model defines the data types of the tenant knowledge base: tenants
// and their UI component rules (relational), documents and structured
// entities (vector store), search results and stream events (ephemeral).
package model

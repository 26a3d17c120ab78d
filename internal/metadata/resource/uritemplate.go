package resource

import (
	"context"
	"net/http"
	"strings"

	"github.com/conduit-lang/apimeta/internal/inflect"
	"github.com/conduit-lang/apimeta/internal/metadata"
)

// URITemplateResolver routes and names operations. Missing templates are
// built from the short name through a Namer, under the route prefix of the
// view; item operations address "{id}". Unnamed REST operations are named
// "_api_<template>_<method>" ("_collection" appended for collection GETs),
// unnamed GraphQL operations "<label>_<short name>".
type URITemplateResolver struct {
	namer inflect.Namer
}

// NewURITemplateResolver creates the resolver. A nil namer uses dash-cased
// plurals.
func NewURITemplateResolver(namer inflect.Namer) *URITemplateResolver {
	if namer == nil {
		namer = inflect.DashNamer{}
	}
	return &URITemplateResolver{namer: namer}
}

// Name implements Resolver
func (r *URITemplateResolver) Name() string { return "uri_template" }

// Resolve implements Resolver
func (r *URITemplateResolver) Resolve(_ context.Context, class metadata.ResourceClass, c metadata.ResourceCollection) (metadata.ResourceCollection, error) {
	seen := make(map[string]bool)
	claim := func(name string) error {
		if seen[name] {
			return &metadata.DuplicateOperationError{Class: class, Operation: name}
		}
		seen[name] = true
		return nil
	}

	return mapViews(c, func(res metadata.APIResource) (metadata.APIResource, error) {
		base := prefix(res.RoutePrefix) + "/" + r.namer.Segment(res.ShortName)

		for i, op := range res.Operations {
			if op.Kind == "" {
				op.Kind = inferKind(op)
			}
			if op.URITemplate == "" {
				op.URITemplate = base
				if op.Kind == metadata.KindItem {
					op.URITemplate += "/{id}"
				}
			}
			if op.Name == "" {
				op.Name = "_api_" + op.URITemplate + "_" + strings.ToLower(op.Method)
				if op.Method == http.MethodGet && op.IsCollection() {
					op.Name += "_collection"
				}
			}
			if err := claim(op.Name); err != nil {
				return res, err
			}
			res.Operations[i] = op
		}

		for i, op := range res.GraphQLOperations {
			if op.Kind == "" {
				op.Kind = inferKind(op)
			}
			if op.Name == "" {
				op.Name = graphQLLabel(op) + "_" + inflect.ToSnakeCase(res.ShortName)
			}
			op.GraphQL = true
			if err := claim(op.Name); err != nil {
				return res, err
			}
			res.GraphQLOperations[i] = op
		}
		return res, nil
	})
}

// inferKind decides the kind of an operation declared without one: POST
// and templates not ending with a placeholder address collections
func inferKind(op metadata.Operation) metadata.OperationKind {
	if op.Method == http.MethodPost {
		return metadata.KindCollection
	}
	if op.URITemplate != "" && !strings.HasSuffix(op.URITemplate, "}") {
		return metadata.KindCollection
	}
	return metadata.KindItem
}

func prefix(p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return ""
	}
	return "/" + p
}

// placeholders returns the parameters of a URI template in order
func placeholders(tpl string) []string {
	var params []string
	for {
		start := strings.IndexByte(tpl, '{')
		if start < 0 {
			return params
		}
		end := strings.IndexByte(tpl[start:], '}')
		if end < 0 {
			return params
		}
		if name := tpl[start+1 : start+end]; name != "" {
			params = append(params, name)
		}
		tpl = tpl[start+end+1:]
	}
}

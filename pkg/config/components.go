package config

import (
	"github.com/marmos91/hotschema/pkg/api"
	"github.com/marmos91/hotschema/pkg/source"
	"github.com/marmos91/hotschema/pkg/store/neo4j"
)

// SourceOptions maps the source section onto source.New options.
func (c *Config) SourceOptions() source.Options {
	gh := c.Source.GitHub
	return source.Options{
		Kind: c.Source.Type,
		GitHub: source.GitHubConfig{
			Owner:  gh.Owner,
			Repo:   gh.Repo,
			Path:   gh.Path,
			Ref:    gh.Ref,
			Token:  gh.Token,
			APIURL: gh.APIURL,
		},
		FilePath: c.Source.File.Path,
		Timeout:  c.Source.RequestTimeout,
	}
}

// Neo4jConfig maps the database section onto a connection factory
// config. Cypher reads share the server's query timeout.
func (c *Config) Neo4jConfig() neo4j.Config {
	return neo4j.Config{
		URI:                   c.Database.URI,
		Username:              c.Database.Username,
		Password:              c.Database.Password,
		Database:              c.Database.Database,
		MaxConnectionPoolSize: c.Database.MaxConnectionPoolSize,
		ConnectTimeout:        c.Database.ConnectTimeout,
		QueryTimeout:          c.Server.QueryTimeout,
	}
}

// APIConfig maps the server section onto the per-generation HTTP server
// config. Every generation binds with SO_REUSEPORT so a replacement can
// take the port while its predecessor drains.
func (c *Config) APIConfig() api.Config {
	s := c.Server
	return api.Config{
		Port:          s.Port,
		ReusePort:     true,
		ReadTimeout:   s.ReadTimeout,
		WriteTimeout:  s.WriteTimeout,
		IdleTimeout:   s.IdleTimeout,
		QueryTimeout:  s.QueryTimeout,
		MaxBodySize:   s.MaxBodySize.Int64(),
		Introspection: s.IntrospectionEnabled(),
		DefaultLimit:  s.DefaultLimit,
	}
}

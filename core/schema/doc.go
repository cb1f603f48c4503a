/*
Package schema defines the declarative input of the model compiler.

A model names a class, the datastore source backing it, and the categories
its keys fall into. A minimal model definition in YAML:

	className: Post
	source: post

	keys:
	  viewable:   [title, body, views, author, cover]
	  actionable: [title, body, views, author, cover]
	  pointers:
	    author: { className: User }
	    company: { className: Company, via: author.company_id }
	  files: [cover]

	fields:
	  title: { type: string, min: 1, max: 120 }
	  views: { type: integer }

# Keys

  - viewable:   keys returned by reads
  - actionable: keys accepted by create and update
  - pointers:   references to other classes, joined on read
  - files:      attachment keys resolved through the storage collaborator

Pointers and files must be nested under keys. Declaring them at the top
level is rejected when the model is compiled.

# Field Types

The fields block assigns library validators, parsers and formatters:

  - string:           optional min/max length
  - password:         hashed on write
  - email:            validated address
  - integer:          accepts increments
  - positive_integer: integer >= 0
  - float:            rounded to decimals
  - date:             stored as UTC
  - object:           stored as JSON text
  - json:             object plus append/set patches
  - no_spaces:        spaces stripped on write

# Parsing

Load models from YAML:

	mod, err := schema.ParseFile("models/post.yaml")
	models, err := schema.ParseDir("models/")

Go callers can build a Model directly and attach Validate, Parse, Format,
BeforeSave and AfterSave functions before compiling it.
*/
package schema

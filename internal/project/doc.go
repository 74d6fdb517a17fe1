// Package project loads graphs from HCL project files.
//
// A project file declares one block per node:
//
//	node "api" "users" {
//	  name = "List users"
//	  url  = "https://api.example.com/users"
//	}
//
//	node "api" "detail" {
//	  url        = "https://api.example.com/users/{{users.result.data[0].id}}"
//	  depends_on = ["users"]
//
//	  query "verbose" { value = true }
//	  query "owner" {
//	    ref_node = "users"
//	    ref_path = "result.data[0].owner"
//	  }
//	}
//
// The first label is the node kind (api, db or file), the second its id.
// `depends_on` lists the nodes whose results this node needs.
package project

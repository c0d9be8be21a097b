// Package config loads the mock peer's settings through viper.
//
// The default file lives at $HOME/.discv5-mock/config.yaml and is written
// with the defaults on first use. A file named with --config must exist.
//
//	base_dir: ~/.discv5-mock
//	listen:
//	  ip: 0.0.0.0
//	  port: 9000
//	node:
//	  key_file: ""   # defaults to <base_dir>/node.key
//	  enr_seq: 1
//	  advertise_ip: ""
//	script: ""
//	transport:
//	  queue_size: 30
//	  send_rate: 0
//	handler:
//	  verify_id_signature: true
package config

package validators

import "go.mongodb.org/mongo-driver/bson"

var LotValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"name",
			"total_slots",
			"available_slots",
			"price_per_hour",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "string",
			},

			"name": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 120,
			},

			"address": bson.M{
				"bsonType":  "string",
				"maxLength": 250,
			},

			"latitude": bson.M{
				"bsonType": []string{"double", "int"},
				"minimum":  -90,
				"maximum":  90,
			},

			"longitude": bson.M{
				"bsonType": []string{"double", "int"},
				"minimum":  -180,
				"maximum":  180,
			},

			"total_slots": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  0,
			},

			"available_slots": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  0,
			},

			"price_per_hour": bson.M{
				"bsonType": []string{"double", "int"},
				"minimum":  0,
			},

			"lock_version": bson.M{
				"bsonType": []string{"int", "long"},
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
	// available_slots never exceeds total_slots.
	"$expr": bson.M{"$lte": bson.A{"$available_slots", "$total_slots"}},
}
